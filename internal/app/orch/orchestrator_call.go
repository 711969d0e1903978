package orch

import (
	"context"
	"errors"

	"github.com/dkeye/randomic/internal/app"
	"github.com/dkeye/randomic/internal/app/await"
	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/dkeye/randomic/internal/metrics"
	"go.uber.org/multierr"
)

func (o *Orchestrator) readinessGate() await.Gate {
	return await.Gate{Interval: o.cfg.ReadinessInterval, Attempts: o.cfg.ReadinessAttempts}
}

func (o *Orchestrator) dialGate() await.Gate {
	return await.Gate{Interval: o.cfg.DialInterval, Attempts: o.cfg.DialAttempts}
}

// matchReady holds when the matchmaking service may be told about us.
func (o *Orchestrator) matchReady() bool {
	return await.All(o.callReady, o.signal.Connected)()
}

func (o *Orchestrator) callReady() bool {
	return await.All(o.transport.Open, o.media.Active)()
}

// unreadyKind names the precondition that kept a gate shut.
func (o *Orchestrator) unreadyKind() domain.Kind {
	switch {
	case !o.media.Active():
		return domain.KindDeviceUnavailable
	case !o.transport.Open():
		return domain.KindTransportUnavailable
	case !o.signal.Connected():
		return domain.KindSignalingUnreachable
	}
	return domain.KindUnknown
}

// gate polls ready off the loop and runs then on the loop once it holds. An
// exhausted gate abandons the session; a canceled or stale one is dropped.
func (o *Orchestrator) gate(ctx context.Context, g await.Gate, op string, ready func() bool, then func()) {
	epoch := o.epoch
	go func() {
		err := await.Until(ctx, o.clock, g, ready)
		kind := domain.KindUnknown
		if err != nil {
			kind = o.unreadyKind()
		}
		o.post(func() {
			if epoch != o.epoch || errors.Is(err, context.Canceled) {
				return
			}
			if err != nil {
				o.logger.Warn().Err(err).Str("op", op).Str("kind", string(kind)).Msg("readiness gate exhausted")
				o.abandon(kind)
				return
			}
			then()
		})
	}()
}

// findPartner asks the matchmaking service for a partner once every
// precondition holds. A newer request supersedes a pending one.
func (o *Orchestrator) findPartner() {
	if o.findCancel != nil {
		o.findCancel()
	}
	ctx, cancel := context.WithCancel(o.epochCtx)
	o.findCancel = cancel
	o.gate(ctx, o.readinessGate(), "find_partner", o.matchReady, func() {
		cancel()
		o.findCancel = nil
		if o.status() != domain.StatusSearching || o.match != nil {
			return
		}
		id := o.transport.ID()
		if err := o.emit(domain.EventFindPartner, id); err != nil {
			return
		}
		o.searchedAs = id
	})
}

func (o *Orchestrator) onMatch(partner domain.PeerID, initiator bool) {
	role := domain.RoleResponder
	if initiator {
		role = domain.RoleInitiator
	}
	if o.findCancel != nil {
		o.findCancel()
		o.findCancel = nil
	}
	o.match = &domain.Match{Partner: partner, Role: role, At: o.clock.Now()}
	o.metrics.Matches.Inc()
	o.logger.Info().Str("partner", partner.String()).Str("role", string(role)).Msg("match found")
	o.resetCall()
	o.publish()

	o.gate(o.epochCtx, o.readinessGate(), "peer_ready", o.matchReady, func() {
		if o.match == nil || o.match.Partner != partner {
			return
		}
		_ = o.emit(domain.EventPeerReady, nil)
	})
}

// dial waits for the call preconditions, gives the partner a moment to
// register with the rendezvous service, then originates.
func (o *Orchestrator) dial() {
	partner := o.match.Partner
	o.gate(o.epochCtx, o.dialGate(), "dial", o.callReady, func() {
		if !o.matchIs(partner) || o.status() != domain.StatusSearching {
			return
		}
		o.arm(&o.dialWait, o.cfg.DialDelay, func() { o.originate(partner) })
	})
}

func (o *Orchestrator) matchIs(partner domain.PeerID) bool {
	return o.match != nil && o.match.Partner == partner
}

func (o *Orchestrator) originate(partner domain.PeerID) {
	if !o.matchIs(partner) || o.status() != domain.StatusSearching {
		return
	}
	if !o.streamLive() {
		o.requeue(domain.Errorf(domain.KindProtocolAnomaly, "originate", "no local stream"))
		return
	}
	o.dropAttempt()
	att, err := o.transport.Call(partner, o.stream, o.attemptHandlers())
	if err != nil {
		// The deadline still runs so a failed dial is retried like a silent one.
		o.logger.Warn().Err(err).Str("partner", partner.String()).Msg("originate failed")
		o.metrics.Attempts.WithLabelValues(metrics.AttemptError).Inc()
		att = nil
	}
	o.beginAttempt(att)
}

func (o *Orchestrator) onIncomingCall(in core.IncomingCall) {
	switch {
	case o.status() != domain.StatusSearching:
		o.logger.Info().Str("from", in.Peer().String()).Str("status", string(o.status())).Msg("offer rejected")
		in.Reject()
		return
	case !o.matchIs(in.Peer()):
		o.logger.Warn().Str("from", in.Peer().String()).Msg("offer from someone other than the partner")
		in.Reject()
		return
	}
	o.disarm(&o.deadline)
	o.dropAttempt()
	if o.streamLive() {
		o.answer(in)
		return
	}
	o.acquireOr(func() { o.answer(in) }, in.Reject)
}

func (o *Orchestrator) answer(in core.IncomingCall) {
	if !o.matchIs(in.Peer()) || o.status() != domain.StatusSearching {
		in.Reject()
		return
	}
	att, err := in.Answer(o.stream, o.attemptHandlers())
	if err != nil {
		o.requeue(domain.Wrap(domain.KindProtocolAnomaly, "answer", err))
		return
	}
	o.beginAttempt(att)
}

// beginAttempt tracks att (nil when origination failed) and arms the
// connection deadline.
func (o *Orchestrator) beginAttempt(att core.CallAttempt) {
	o.attempt = att
	if o.match.Attempt == 0 {
		o.match.Attempt = 1
	}
	o.metrics.Attempts.WithLabelValues(metrics.AttemptStarted).Inc()
	o.logger.Info().Str("partner", o.match.Partner.String()).Int("attempt", o.match.Attempt).Msg("call attempt started")
	o.armDeadline()
}

func (o *Orchestrator) armDeadline() {
	o.arm(&o.deadline, o.cfg.ConnectDeadline, o.onDeadline)
}

// attemptHandlers route transport callbacks through the queue.
func (o *Orchestrator) attemptHandlers() core.AttemptHandlers {
	return core.AttemptHandlers{
		OnStream: func(a core.CallAttempt) { o.post(func() { o.onRemoteStream(a) }) },
		OnClosed: func(a core.CallAttempt) { o.post(func() { o.onAttemptEnded(a, nil) }) },
		OnError:  func(a core.CallAttempt, err error) { o.post(func() { o.onAttemptEnded(a, err) }) },
	}
}

func (o *Orchestrator) onRemoteStream(a core.CallAttempt) {
	if a != o.attempt || o.match == nil {
		o.logger.Debug().Str("attempt", a.ID()).Msg("stream from stale attempt ignored")
		return
	}
	if o.status() == domain.StatusConnected {
		return
	}
	o.disarm(&o.deadline)
	o.disarm(&o.dialWait)
	o.match.Attempt = 0
	o.fire(evConnect)
	o.metrics.Attempts.WithLabelValues(metrics.AttemptConnected).Inc()
	o.startTicking()
}

func (o *Orchestrator) startTicking() {
	o.arm(&o.tick, tickInterval, func() {
		if o.status() != domain.StatusConnected {
			return
		}
		o.duration++
		o.publish()
		o.startTicking()
	})
}

// onAttemptEnded handles a close or error of the current attempt. Before
// media flows the deadline owns recovery; afterwards it is a lost partner.
func (o *Orchestrator) onAttemptEnded(a core.CallAttempt, err error) {
	if a != o.attempt {
		return
	}
	o.attempt = nil
	outcome := metrics.AttemptClosed
	if err != nil {
		outcome = metrics.AttemptError
	}
	o.metrics.Attempts.WithLabelValues(outcome).Inc()
	o.logger.Info().Err(err).Str("attempt", a.ID()).Str("status", string(o.status())).Msg("call attempt ended")
	if err != nil {
		_ = a.Close()
	}
	if o.status() == domain.StatusConnected {
		o.partnerLost(domain.NoticeConnectionLost)
	}
}

func (o *Orchestrator) onDeadline() {
	if o.match == nil || o.status() != domain.StatusSearching {
		return
	}
	o.metrics.Attempts.WithLabelValues(metrics.AttemptTimeout).Inc()
	action := o.policy.OnDeadline(o.match.Attempt)
	o.logger.Warn().
		Str("partner", o.match.Partner.String()).
		Int("attempt", o.match.Attempt).
		Str("action", action.String()).
		Msg("no remote media before deadline")

	switch action {
	case app.RetryAttempt:
		o.match.Attempt++
		o.dropAttempt()
		o.releaseStream()
		if o.match.Initiator() {
			o.acquire(o.dial)
			return
		}
		o.armDeadline()
	case app.AbortMatch:
		o.requeue(domain.ErrNegotiationTimeout)
	}
}

// dropAttempt closes the current attempt without reacting to its close.
func (o *Orchestrator) dropAttempt() {
	if o.attempt == nil {
		return
	}
	att := o.attempt
	o.attempt = nil
	if err := att.Close(); err != nil {
		o.logger.Debug().Err(err).Str("attempt", att.ID()).Msg("close stale attempt")
	}
}

// teardown cancels everything bound to the current session: pending timers,
// gates, acquisitions, the attempt and the stream.
func (o *Orchestrator) teardown() error {
	o.epochCancel()
	o.epoch++
	o.epochCtx, o.epochCancel = context.WithCancel(o.runCtx)
	o.findCancel = nil
	o.searchedAs = ""
	o.disarmCallTimers()

	var err error
	if o.attempt != nil {
		err = multierr.Append(err, o.attempt.Close())
		o.attempt = nil
	}
	if o.status() == domain.StatusConnected {
		o.metrics.CallDuration.Observe(float64(o.duration))
	}
	o.releaseStream()
	o.match = nil
	return err
}

// requeue abandons the match and goes straight back to matchmaking.
func (o *Orchestrator) requeue(cause error) {
	o.logger.Warn().Err(cause).Str("kind", string(domain.KindOf(cause))).Msg("abandoning match")
	_ = o.emit(domain.EventDisconnectCall, nil)
	if err := o.teardown(); err != nil {
		o.logger.Debug().Err(err).Msg("teardown")
	}
	o.fire(evSearch)
	o.acquire(o.findPartner)
}

// partnerLost ends the call. With auto-reconnect the session keeps searching
// and a fresh search starts after the grace delay.
func (o *Orchestrator) partnerLost(text string) {
	if err := o.teardown(); err != nil {
		o.logger.Debug().Err(err).Msg("teardown")
	}
	o.notify(domain.NoticeInfo, domain.KindUnknown, text)
	if !o.prefs.AutoReconnect {
		o.fire(evStop)
		return
	}
	o.fire(evSearch)
	o.arm(&o.grace, o.cfg.ReconnectDelay, func() { o.acquire(o.findPartner) })
}

// abandon gives up after a readiness budget ran out.
func (o *Orchestrator) abandon(kind domain.Kind) {
	if o.match != nil {
		_ = o.emit(domain.EventDisconnectCall, nil)
	}
	o.fail(kind, domain.NoticeConnectionFailed)
}

// fail returns to idle with an error notification.
func (o *Orchestrator) fail(kind domain.Kind, text string) {
	if err := o.teardown(); err != nil {
		o.logger.Debug().Err(err).Msg("teardown")
	}
	o.fire(evStop)
	o.notify(domain.NoticeError, kind, text)
}

func (o *Orchestrator) emit(t domain.EventType, payload any) error {
	if err := o.signal.Emit(t, payload); err != nil {
		o.logger.Warn().Err(err).Str("type", string(t)).Msg("emit failed")
		return err
	}
	return nil
}
