package media

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoDevice         = errors.New("no capture device")
)

// FrameDuration is the packetization interval of every capture.
const FrameDuration = 20 * time.Millisecond

// opusSilence is a single 20ms Opus silence frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Device opens the microphone.
type Device interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture yields encoded Opus frames until closed.
type Capture interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// SilenceDevice is a headless microphone producing Opus silence in real time.
type SilenceDevice struct{}

func (SilenceDevice) Open(context.Context) (Capture, error) {
	return &silenceCapture{ticker: time.NewTicker(FrameDuration), done: make(chan struct{})}, nil
}

type silenceCapture struct {
	ticker *time.Ticker
	once   sync.Once
	done   chan struct{}
}

func (c *silenceCapture) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
		return nil, errors.New("capture closed")
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errors.New("capture closed")
	case <-c.ticker.C:
		return opusSilence, nil
	}
}

func (c *silenceCapture) Close() error {
	c.once.Do(func() {
		c.ticker.Stop()
		close(c.done)
	})
	return nil
}

// DeniedDevice always refuses access, like a user rejecting the prompt.
type DeniedDevice struct{}

func (DeniedDevice) Open(context.Context) (Capture, error) {
	return nil, ErrPermissionDenied
}
