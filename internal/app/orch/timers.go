package orch

import (
	"time"

	"github.com/dkeye/randomic/internal/clock"
)

const tickInterval = time.Second

// timerSlot holds at most one pending timer of a kind. A fire only counts
// if the slot still carries the sequence it was armed with, so a timer that
// races its own disarm is a no-op.
type timerSlot struct {
	t   clock.Timer
	seq uint64
}

func (s *timerSlot) armed() bool { return s.seq != 0 }

func (o *Orchestrator) arm(slot *timerSlot, d time.Duration, fn func()) {
	o.disarm(slot)
	o.timerSeq++
	seq := o.timerSeq
	slot.seq = seq
	slot.t = o.clock.AfterFunc(d, func() {
		o.post(func() {
			if slot.seq != seq {
				return
			}
			slot.t = nil
			slot.seq = 0
			fn()
		})
	})
}

func (o *Orchestrator) disarm(slot *timerSlot) {
	if slot.t != nil {
		slot.t.Stop()
	}
	slot.t = nil
	slot.seq = 0
}

func (o *Orchestrator) disarmCallTimers() {
	o.disarm(&o.deadline)
	o.disarm(&o.dialWait)
	o.disarm(&o.grace)
	o.disarm(&o.tick)
}
