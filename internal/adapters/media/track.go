package media

import "sync/atomic"

type TrackState int32

const (
	TrackStateLive TrackState = iota
	TrackStateMuted
	TrackStateStopped
)

func (s TrackState) String() string {
	switch s {
	case TrackStateLive:
		return "live"
	case TrackStateMuted:
		return "muted"
	case TrackStateStopped:
		return "stopped"
	}
	return "unknown"
}

// trackState is the enabled flag of a local track.
// Stopped is terminal: no transition leaves it.
type trackState struct {
	v atomic.Int32 // Zero by default (TrackStateLive)
}

func (t *trackState) Get() TrackState {
	return TrackState(t.v.Load())
}

func (t *trackState) SetEnabled(enabled bool) {
	from, to := TrackStateMuted, TrackStateLive
	if !enabled {
		from, to = TrackStateLive, TrackStateMuted
	}
	t.v.CompareAndSwap(int32(from), int32(to))
}

// MarkStopped reports whether this call performed the stop.
func (t *trackState) MarkStopped() bool {
	return TrackState(t.v.Swap(int32(TrackStateStopped))) != TrackStateStopped
}
