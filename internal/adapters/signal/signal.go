// Package signal is the client side of the matchmaking channel.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/randomic/internal/clock"
	"github.com/dkeye/randomic/internal/config"
	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/dkeye/randomic/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	errConnClosed   = errors.New("connection closed")
)

var _ core.SignalChannel = (*Channel)(nil)

// Channel keeps one websocket to the matchmaking service alive, redialing
// with exponential backoff whenever it drops.
type Channel struct {
	cfg     config.SignalConfig
	handler core.SignalHandler
	clock   clock.Clock
	metrics *metrics.Metrics
	dialer  *websocket.Dialer
	limiter *RateLimiter

	mu            sync.RWMutex
	conn          *wsConn
	everConnected bool
}

func NewChannel(cfg config.SignalConfig, handler core.SignalHandler, clk clock.Clock, m *metrics.Metrics) *Channel {
	return &Channel{
		cfg:     cfg,
		handler: handler,
		clock:   clk,
		metrics: m,
		dialer:  websocket.DefaultDialer,
		limiter: NewRateLimiter(cfg.TextLimit, cfg.TextInterval),
	}
}

type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Emit queues one outbound event. Outbound text is rate limited.
func (c *Channel) Emit(t domain.EventType, payload any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return domain.ErrSignalingUnreachable
	}
	if t == domain.EventSendMessage && !c.limiter.Allow(t) {
		return domain.ErrRateLimited
	}
	b, err := encode(t, payload)
	if err != nil {
		return err
	}
	if err := conn.TrySend(b); err != nil {
		return domain.Wrap(domain.KindSignalingUnreachable, "emit", err)
	}
	log.Debug().Str("module", "signal").Str("type", string(t)).Msg("emit")
	return nil
}

// Run dials and serves the channel until ctx is done.
func (c *Channel) Run(ctx context.Context) error {
	backoff := c.cfg.BackoffMin
	for {
		served, err := c.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if served {
			backoff = c.cfg.BackoffMin
		}
		log.Warn().Err(err).Str("module", "signal").Dur("backoff", backoff).Msg("channel down, redialing")
		select {
		case <-ctx.Done():
			return nil
		case <-c.clock.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.BackoffMax)
	}
}

// serve runs one connection to completion. served reports whether the dial succeeded.
func (c *Channel) serve(ctx context.Context) (served bool, err error) {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, http.Header{})
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	if c.cfg.ReadLimit > 0 {
		ws.SetReadLimit(c.cfg.ReadLimit)
	}
	conn := &wsConn{conn: ws, send: make(chan []byte, 32)}

	c.mu.Lock()
	reconnected := c.everConnected
	c.everConnected = true
	c.conn = conn
	c.mu.Unlock()

	if reconnected && c.metrics != nil {
		c.metrics.Reconnects.WithLabelValues("signal", "redial").Inc()
	}
	log.Info().Str("module", "signal").Str("url", c.cfg.URL).Bool("reconnected", reconnected).Msg("channel up")
	c.handler.HandleSignal(domain.SignalEvent{Type: domain.EventChannelUp, Reconnected: reconnected})

	sessCtx, cancel := context.WithCancel(ctx)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(sessCtx, conn)
		// A failed write must also unblock the reader.
		conn.Close()
	}()
	err = c.readPump(sessCtx, conn)

	cancel()
	conn.Close()
	<-writeDone

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	c.handler.HandleSignal(domain.SignalEvent{Type: domain.EventChannelDown})
	return true, err
}

func (c *Channel) pongWait() time.Duration {
	return c.cfg.PingPeriod * 10 / 9
}
