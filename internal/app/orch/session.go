package orch

import (
	"context"
	"errors"

	"github.com/dkeye/randomic/internal/domain"
	"github.com/looplab/fsm"
)

// Session status events.
const (
	evSearch  = "search"
	evConnect = "connect"
	evStop    = "stop"
)

func newSessionFSM(onEnter func(from, to, event string)) *fsm.FSM {
	idle := string(domain.StatusIdle)
	searching := string(domain.StatusSearching)
	connected := string(domain.StatusConnected)
	return fsm.NewFSM(
		idle,
		fsm.Events{
			{Name: evSearch, Src: []string{idle, searching, connected}, Dst: searching},
			{Name: evConnect, Src: []string{searching}, Dst: connected},
			{Name: evStop, Src: []string{idle, searching, connected}, Dst: idle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(e.Src, e.Dst, e.Event)
			},
		},
	)
}

func (o *Orchestrator) status() domain.Status {
	return domain.Status(o.fsm.Current())
}

func (o *Orchestrator) onEnterState(from, to, event string) {
	o.metrics.Transitions.WithLabelValues(from, to, event).Inc()
	o.logger.Info().Str("from", from).Str("to", to).Str("event", event).Msg("status")
}

// fire moves the session along event. Every entry, even into the same
// status, clears the per-call state.
func (o *Orchestrator) fire(event string) {
	if err := o.fsm.Event(context.Background(), event); err != nil {
		var same fsm.NoTransitionError
		if !errors.As(err, &same) {
			o.logger.Error().Err(err).Str("event", event).Str("status", string(o.status())).Msg("rejected transition")
			return
		}
	}
	o.resetCall()
	o.publish()
}

func (o *Orchestrator) resetCall() {
	o.transcript = nil
	o.duration = 0
	o.unread = 0
}

func (o *Orchestrator) notify(kind domain.NotificationKind, errKind domain.Kind, text string) {
	o.notification = &domain.Notification{
		Kind:    kind,
		Error:   errKind,
		Message: text,
		At:      o.clock.Now(),
	}
	label := string(errKind)
	if label == "" {
		label = "none"
	}
	o.metrics.Notifications.WithLabelValues(label).Inc()
	o.logger.Info().Str("kind", string(kind)).Str("error", string(errKind)).Msg(text)
	o.arm(&o.notice, o.cfg.NotificationTTL, func() {
		o.notification = nil
		o.publish()
	})
	o.publish()
}

func (o *Orchestrator) buildSnapshot() domain.Snapshot {
	s := domain.Snapshot{
		Status:        o.status(),
		IsMuted:       o.muted,
		CallDuration:  o.duration,
		Transcript:    make([]domain.Message, len(o.transcript)),
		UnreadCount:   o.unread,
		OnlineUsers:   o.online,
		AutoReconnect: o.prefs.AutoReconnect,
		Theme:         o.prefs.Theme,
	}
	copy(s.Transcript, o.transcript)
	if o.notification != nil {
		n := *o.notification
		s.Notification = &n
	}
	return s
}

// publish stores the current projection and hands it to every subscriber.
// Slow subscribers only ever see the latest value.
func (o *Orchestrator) publish() {
	snap := o.buildSnapshot()
	o.snapMu.Lock()
	defer o.snapMu.Unlock()
	o.snap = snap
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Snapshot returns the latest projection. Safe from any goroutine.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	return o.snap
}

// Subscribe returns a channel primed with the current snapshot and updated
// on every change, plus a func that ends the subscription.
func (o *Orchestrator) Subscribe() (<-chan domain.Snapshot, func()) {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan domain.Snapshot, 1)
	ch <- o.snap
	o.subs[id] = ch
	return ch, func() {
		o.snapMu.Lock()
		defer o.snapMu.Unlock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
	}
}
