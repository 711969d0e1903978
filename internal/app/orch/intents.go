package orch

import (
	"context"
	"strings"

	"github.com/dkeye/randomic/internal/domain"
)

// RequestStart begins a search from idle. It is a no-op in any other status.
func (o *Orchestrator) RequestStart(ctx context.Context) error {
	return o.do(ctx, func() error {
		if o.status() != domain.StatusIdle {
			o.logger.Debug().Str("status", string(o.status())).Msg("start ignored")
			return nil
		}
		o.fire(evSearch)
		o.acquire(o.findPartner)
		return nil
	})
}

// RequestSkip drops the current partner, if any, and searches again.
func (o *Orchestrator) RequestSkip(ctx context.Context) error {
	return o.do(ctx, func() error {
		if o.status() == domain.StatusIdle {
			return nil
		}
		_ = o.emit(domain.EventDisconnectCall, nil)
		if err := o.teardown(); err != nil {
			o.logger.Debug().Err(err).Msg("teardown")
		}
		o.fire(evSearch)
		o.acquire(o.findPartner)
		return nil
	})
}

// RequestHangup ends the call or search and returns to idle.
func (o *Orchestrator) RequestHangup(ctx context.Context) error {
	return o.do(ctx, func() error {
		o.stop()
		return nil
	})
}

// RequestHome leaves the chat view. The session ends exactly as on hangup.
func (o *Orchestrator) RequestHome(ctx context.Context) error {
	return o.do(ctx, func() error {
		o.stop()
		return nil
	})
}

func (o *Orchestrator) stop() {
	if o.status() == domain.StatusIdle {
		return
	}
	_ = o.emit(domain.EventDisconnectCall, nil)
	if err := o.teardown(); err != nil {
		o.logger.Debug().Err(err).Msg("teardown")
	}
	o.fire(evStop)
}

func (o *Orchestrator) ToggleMute(ctx context.Context) error {
	return o.do(ctx, o.toggleMute)
}

// SendText forwards text to the partner and records it. It fails with
// domain.ErrEmptyMessage, domain.ErrNotConnected, domain.ErrRateLimited or a
// signaling error; a failed message is not recorded.
func (o *Orchestrator) SendText(ctx context.Context, text string) error {
	return o.do(ctx, func() error {
		if strings.TrimSpace(text) == "" {
			return domain.ErrEmptyMessage
		}
		if o.status() != domain.StatusConnected {
			return domain.ErrNotConnected
		}
		if err := o.emit(domain.EventSendMessage, text); err != nil {
			return err
		}
		o.transcript = append(o.transcript, domain.Message{Text: text, Direction: domain.DirectionSent})
		o.publish()
		return nil
	})
}

func (o *Orchestrator) ToggleAutoReconnect(ctx context.Context) error {
	return o.do(ctx, func() error {
		o.prefs.AutoReconnect = !o.prefs.AutoReconnect
		return o.savePrefs()
	})
}

func (o *Orchestrator) ToggleTheme(ctx context.Context) error {
	return o.do(ctx, func() error {
		o.prefs.Theme = o.prefs.Theme.Toggle()
		return o.savePrefs()
	})
}

func (o *Orchestrator) savePrefs() error {
	o.publish()
	if o.store == nil {
		return nil
	}
	if err := o.store.Save(o.prefs); err != nil {
		o.logger.Error().Err(err).Msg("save preferences")
		return err
	}
	return nil
}

// MarkRead clears the unread counter, as when the chat panel is opened.
func (o *Orchestrator) MarkRead(ctx context.Context) error {
	return o.do(ctx, func() error {
		o.unread = 0
		o.publish()
		return nil
	})
}

func (o *Orchestrator) DismissNotification(ctx context.Context) error {
	return o.do(ctx, func() error {
		o.disarm(&o.notice)
		o.notification = nil
		o.publish()
		return nil
	})
}
