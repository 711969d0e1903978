// Package rtc is the direct peer-to-peer transport: an identity on a
// PeerJS-compatible rendezvous server plus pion PeerConnections negotiated
// through it.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/randomic/internal/clock"
	"github.com/dkeye/randomic/internal/config"
	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/dkeye/randomic/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 5 * time.Second
	openWait       = 10 * time.Second
	reconnectDelay = time.Second
)

var _ core.TransportPeer = (*Peer)(nil)

// Option tunes a Peer.
type Option func(*Peer)

// WithSink plays remote audio into s instead of discarding it.
func WithSink(s Sink) Option { return func(p *Peer) { p.sink = s } }

// WithIdentitySource replaces uuid identities, mostly for tests.
func WithIdentitySource(f func() domain.PeerID) Option { return func(p *Peer) { p.newID = f } }

// Peer is this client's presence on the rendezvous network. It reconnects in
// place when the socket drops and recreates the identity when the server
// refuses it.
type Peer struct {
	cfg     config.RendezvousConfig
	handler core.TransportHandler
	clock   clock.Clock
	metrics *metrics.Metrics
	api     *webrtc.API
	dialer  *websocket.Dialer
	sink    Sink
	newID   func() domain.PeerID
	logger  zerolog.Logger

	writeMu sync.Mutex

	mu        sync.RWMutex
	ws        *websocket.Conn
	id        domain.PeerID
	open      bool
	announced domain.PeerID
	conns     map[string]*connection
	calls     map[string]*mediaCall
	offers    map[string]*incomingCall
}

func NewPeer(cfg config.RendezvousConfig, handler core.TransportHandler, clk clock.Clock, m *metrics.Metrics, opts ...Option) (*Peer, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	se := webrtc.SettingEngine{}
	se.LoggerFactory = loggerFactory{minLevel: zerolog.WarnLevel}

	p := &Peer{
		cfg:     cfg,
		handler: handler,
		clock:   clk,
		metrics: m,
		api:     webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)),
		dialer:  websocket.DefaultDialer,
		sink:    &CountingSink{},
		newID:   domain.NewPeerID,
		logger:  log.With().Str("module", "rtc").Logger(),
		conns:   make(map[string]*connection),
		calls:   make(map[string]*mediaCall),
		offers:  make(map[string]*incomingCall),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Peer) ID() domain.PeerID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.open {
		return ""
	}
	return p.id
}

func (p *Peer) Open() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

// sessionEnd explains why a rendezvous session stopped.
type sessionEnd int

const (
	endDropped sessionEnd = iota
	endRecreate
)

// Run keeps an identity registered until ctx is done.
func (p *Peer) Run(ctx context.Context) error {
	var (
		want     domain.PeerID
		failures int
	)
	defer p.closeAll()
	for {
		if want == "" {
			want = p.newID()
			failures = 0
		}
		opened, end, err := p.session(ctx, want)
		if ctx.Err() != nil {
			return nil
		}
		if opened {
			failures = 0
		} else {
			failures++
		}
		if end == endRecreate || failures > p.cfg.ReconnectAttempts {
			p.logger.Warn().Err(err).Str("id", want.String()).Msg("identity lost, recreating")
			p.closeAll()
			want = ""
			p.countReconnect("recreate")
		} else {
			p.logger.Warn().Err(err).Str("id", want.String()).Int("failures", failures).Msg("rendezvous down, reconnecting")
			p.countReconnect("reconnect")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-p.clock.After(reconnectDelay):
		}
	}
}

func (p *Peer) countReconnect(mode string) {
	if p.metrics != nil {
		p.metrics.Reconnects.WithLabelValues("transport", mode).Inc()
	}
}

func (p *Peer) endpoint(id domain.PeerID) (string, error) {
	u, err := url.Parse(p.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", p.cfg.Key)
	q.Set("id", id.String())
	q.Set("token", uuid.NewString())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session registers id and serves the socket until it drops.
func (p *Peer) session(ctx context.Context, id domain.PeerID) (opened bool, end sessionEnd, err error) {
	endpoint, err := p.endpoint(id)
	if err != nil {
		return false, endRecreate, fmt.Errorf("bad rendezvous url: %w", err)
	}
	ws, _, err := p.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return false, endDropped, fmt.Errorf("dial rendezvous: %w", err)
	}
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessCtx.Done()
		_ = ws.Close()
	}()

	_ = ws.SetReadDeadline(time.Now().Add(openWait))
	first, err := readMessage(ws)
	if err != nil {
		return false, endDropped, err
	}
	switch first.Type {
	case msgOpen:
	case msgIDTaken:
		return false, endRecreate, fmt.Errorf("id %s taken", id)
	case msgError:
		return false, endRecreate, fmt.Errorf("rendezvous refused: %s", first.errorText())
	default:
		return false, endDropped, fmt.Errorf("unexpected %s before OPEN", first.Type)
	}
	_ = ws.SetReadDeadline(time.Time{})

	p.mu.Lock()
	p.ws = ws
	p.id = id
	p.open = true
	fresh := p.announced != id
	p.announced = id
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.ws == ws {
			p.ws = nil
			p.open = false
		}
		p.mu.Unlock()
	}()

	p.logger.Info().Str("id", id.String()).Bool("fresh", fresh).Msg("identity open")
	if fresh {
		p.handler.OnIdentity(id)
	}

	go p.heartbeat(sessCtx)

	hardErrors := 0
	for {
		m, err := readMessage(ws)
		if err != nil {
			return true, endDropped, err
		}
		if m.Type == msgError {
			hardErrors++
			p.logger.Error().Str("msg", m.errorText()).Int("count", hardErrors).Msg("rendezvous error")
			if hardErrors >= p.cfg.HardErrorLimit {
				return true, endRecreate, errors.New("too many rendezvous errors")
			}
			continue
		}
		p.route(sessCtx, m)
	}
}

func readMessage(ws *websocket.Conn) (message, error) {
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return message{}, err
	}
	m, err := parseMessage(raw)
	if err != nil {
		return message{}, fmt.Errorf("bad rendezvous frame: %w", err)
	}
	return m, nil
}

func (m message) errorText() string {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Msg
}

func (p *Peer) heartbeat(ctx context.Context) {
	if p.cfg.Heartbeat <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.clock.After(p.cfg.Heartbeat):
			if err := p.send(message{Type: msgHeartbeat}); err != nil {
				p.logger.Debug().Err(err).Msg("heartbeat")
				return
			}
		}
	}
}

func (p *Peer) send(m message) error {
	p.mu.RLock()
	ws := p.ws
	p.mu.RUnlock()
	if ws == nil {
		return domain.ErrTransportUnavailable
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return domain.Wrap(domain.KindTransportUnavailable, "send", err)
	}
	if err := ws.WriteJSON(m); err != nil {
		return domain.Wrap(domain.KindTransportUnavailable, "send", err)
	}
	return nil
}

func (p *Peer) route(ctx context.Context, m message) {
	src := domain.PeerID(m.Src)
	switch m.Type {
	case msgHeartbeat:
	case msgOffer:
		if m.Payload == nil || m.Payload.SDP == nil || m.Payload.ConnectionID == "" {
			p.logger.Warn().Str("src", m.Src).Msg("malformed offer")
			return
		}
		if m.Payload.Type == kindData {
			go p.acceptProbe(ctx, src, m.Payload)
			return
		}
		in := &incomingCall{p: p, id: m.Payload.ConnectionID, peer: src, offer: *m.Payload.SDP}
		p.mu.Lock()
		p.offers[in.id] = in
		p.mu.Unlock()
		p.logger.Info().Str("src", m.Src).Str("conn", in.id).Msg("incoming call")
		p.handler.OnIncomingCall(in)
	case msgAnswer:
		if m.Payload == nil || m.Payload.SDP == nil {
			return
		}
		c := p.lookup(m.Payload.ConnectionID)
		if c == nil {
			p.logger.Debug().Str("conn", m.Payload.ConnectionID).Msg("answer for unknown connection")
			return
		}
		if err := c.applyAnswer(*m.Payload.SDP); err != nil {
			p.fail(c, domain.Wrap(domain.KindTransportUnavailable, "answer", err))
		}
	case msgCandidate:
		if m.Payload == nil || m.Payload.Candidate == nil {
			return
		}
		if c := p.lookup(m.Payload.ConnectionID); c != nil {
			if err := c.addICECandidate(*m.Payload.Candidate); err != nil {
				c.logger.Warn().Err(err).Msg("candidate rejected")
			}
			return
		}
		p.mu.RLock()
		in, ok := p.offers[m.Payload.ConnectionID]
		p.mu.RUnlock()
		if ok {
			in.addCandidate(*m.Payload.Candidate)
		}
	case msgLeave:
		p.logger.Info().Str("src", m.Src).Msg("partner left rendezvous")
		for _, c := range p.connectionsTo(src) {
			c.close()
		}
	case msgExpire:
		p.logger.Info().Str("src", m.Src).Msg("partner unreachable")
		for _, c := range p.connectionsTo(src) {
			p.fail(c, domain.Errorf(domain.KindTransportUnavailable, "call", "peer %s unavailable", src))
		}
	default:
		p.logger.Debug().Str("type", string(m.Type)).Msg("ignored rendezvous frame")
	}
}

func (p *Peer) register(c *connection) {
	p.mu.Lock()
	p.conns[c.id] = c
	p.mu.Unlock()
}

func (p *Peer) forget(id string) {
	p.mu.Lock()
	delete(p.conns, id)
	delete(p.calls, id)
	delete(p.offers, id)
	p.mu.Unlock()
}

func (p *Peer) lookup(id string) *connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conns[id]
}

func (p *Peer) connectionsTo(peer domain.PeerID) []*connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []*connection
	for _, c := range p.conns {
		if c.peer == peer {
			out = append(out, c)
		}
	}
	return out
}

// fail ends a connection with err: media calls report it, probes just close.
func (p *Peer) fail(c *connection, err error) {
	p.mu.RLock()
	call, ok := p.calls[c.id]
	p.mu.RUnlock()
	if ok {
		call.fail(err)
		return
	}
	c.logger.Warn().Err(err).Msg("connection failed")
	c.close()
}

func (p *Peer) closeAll() {
	p.mu.RLock()
	conns := make([]*connection, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}
