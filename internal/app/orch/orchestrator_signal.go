package orch

import (
	"context"

	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
)

// HandleSignal queues an inbound signaling event.
func (o *Orchestrator) HandleSignal(ev domain.SignalEvent) {
	o.post(func() { o.onSignal(ev) })
}

// OnIncomingCall queues an inbound offer.
func (o *Orchestrator) OnIncomingCall(in core.IncomingCall) {
	o.post(func() { o.onIncomingCall(in) })
}

// OnIdentity queues a transport identity change.
func (o *Orchestrator) OnIdentity(id domain.PeerID) {
	o.post(func() { o.onIdentity(id) })
}

func (o *Orchestrator) onSignal(ev domain.SignalEvent) {
	status := o.status()
	switch ev.Type {
	case domain.EventUserCount:
		o.online = ev.Count
		o.publish()

	case domain.EventMatchFound:
		switch {
		case status == domain.StatusIdle:
			o.logger.Info().Str("partner", ev.Partner.String()).Msg("match while idle ignored")
		case o.match != nil:
			o.requeue(domain.Errorf(domain.KindProtocolAnomaly, "match",
				"second match %s while matched with %s", ev.Partner, o.match.Partner))
		default:
			o.onMatch(ev.Partner, ev.Initiator)
		}

	case domain.EventStartCall:
		if status != domain.StatusSearching || !o.matchIs(ev.Partner) || !o.match.Initiator() {
			o.logger.Info().Str("partner", ev.Partner.String()).Str("status", string(status)).Msg("start_call ignored")
			return
		}
		o.dial()

	case domain.EventPreflight:
		o.preflight(ev.Partner)

	case domain.EventPartnerDisconnected:
		if status == domain.StatusIdle {
			return
		}
		o.partnerLost(domain.NoticePartnerLeft)

	case domain.EventReceiveMessage:
		if status != domain.StatusConnected {
			o.logger.Debug().Msg("message outside a call dropped")
			return
		}
		o.transcript = append(o.transcript, domain.Message{Text: ev.Text, Direction: domain.DirectionReceived})
		o.unread++
		o.publish()

	case domain.EventPeerNotReady:
		o.logger.Debug().Msg("partner not ready yet")

	case domain.EventChannelUp:
		if ev.Reconnected && o.waitingInQueue() {
			o.logger.Info().Msg("signaling back, searching again")
			o.findPartner()
		}

	case domain.EventChannelDown:
		o.logger.Warn().Str("status", string(status)).Msg("signaling lost")
	}
}

func (o *Orchestrator) onIdentity(id domain.PeerID) {
	o.logger.Info().Str("peer", id.String()).Msg("transport identity")
	if o.waitingInQueue() && o.searchedAs != id {
		o.findPartner()
	}
}

// waitingInQueue reports whether a find_partner went out and no match came back.
func (o *Orchestrator) waitingInQueue() bool {
	return o.status() == domain.StatusSearching && o.match == nil && o.searchedAs != ""
}

// preflight warms the path to partner with a short data connection and
// reports preflight_done exactly once, whatever the probe's outcome.
func (o *Orchestrator) preflight(partner domain.PeerID) {
	ctx := o.epochCtx
	go func() {
		select {
		case <-o.clock.After(o.cfg.PreflightDelay):
		case <-ctx.Done():
		}
		probeCtx, cancel := context.WithCancel(ctx)
		timeout := o.clock.AfterFunc(o.cfg.PreflightTimeout, cancel)
		err := o.transport.Probe(probeCtx, partner, o.cfg.PreflightLinger)
		timeout.Stop()
		cancel()
		o.post(func() {
			if err != nil {
				o.logger.Debug().Err(err).Str("partner", partner.String()).Msg("preflight probe")
			}
			_ = o.emit(domain.EventPreflightDone, nil)
		})
	}()
}
