package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// LocalStream is the single local capture stream.
// Stop releases every track and is idempotent.
type LocalStream interface {
	ID() string
	// Track is attached to every Call Attempt made with this stream.
	Track() webrtc.TrackLocal
	// SetEnabled flips the enabled flag of the sole audio track.
	SetEnabled(bool)
	Enabled() bool
	Stop()
	Stopped() bool
}

// MediaManager owns the capture device. At most one stream is live; Acquire
// stops the previous stream before opening the device again.
type MediaManager interface {
	Acquire(ctx context.Context) (LocalStream, error)
	// Release stops the current stream, if any.
	Release()
	// Active reports whether a live stream exists.
	Active() bool
}
