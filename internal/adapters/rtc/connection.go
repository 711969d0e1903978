package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/randomic/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// connection wraps one PeerConnection negotiated through the rendezvous
// server. Both media calls and preflight probes ride on it.
type connection struct {
	pc     *webrtc.PeerConnection
	id     string
	peer   domain.PeerID
	kind   connKind
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	remoteSet bool
	early     []webrtc.ICECandidateInit

	onTrack   func(ctx context.Context, track *webrtc.TrackRemote)
	onClosed  func()
	closeOnce sync.Once
}

func (p *Peer) newConnection(id string, peer domain.PeerID, kind connKind) (*connection, error) {
	pc, err := p.api.NewPeerConnection(p.webrtcConfig())
	if err != nil {
		return nil, domain.Wrap(domain.KindTransportUnavailable, "peer connection", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		pc:     pc,
		id:     id,
		peer:   peer,
		kind:   kind,
		ctx:    ctx,
		cancel: cancel,
		logger: p.logger.With().Str("conn", id).Str("partner", peer.String()).Str("kind", string(kind)).Logger(),
	}
	c.start()
	return c, nil
}

func (p *Peer) webrtcConfig() webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(p.cfg.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: p.cfg.ICEServers}}
	}
	return cfg
}

func (c *connection) start() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Debug().Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			c.close()
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("track_kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.onTrack != nil {
			c.onTrack(c.ctx, track)
		}
	})
}

// addLocalTrack attaches the capture track and drains RTCP so the sender's
// interceptors keep running.
func (c *connection) addLocalTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// createOffer returns a complete offer. Candidates are gathered up front so
// the description can be forwarded in a single frame.
func (c *connection) createOffer(ctx context.Context) (*webrtc.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	return c.setLocalAndGather(ctx, offer)
}

func (c *connection) applyOfferAndCreateAnswer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.setRemote(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	return c.setLocalAndGather(ctx, answer)
}

func (c *connection) setLocalAndGather(ctx context.Context, desc webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(desc); err != nil {
		return nil, err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, fmt.Errorf("connection %s closed while gathering", c.id)
	}
	return c.pc.LocalDescription(), nil
}

func (c *connection) applyAnswer(answer webrtc.SessionDescription) error {
	return c.setRemote(answer)
}

func (c *connection) setRemote(desc webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	c.mu.Lock()
	c.remoteSet = true
	early := c.early
	c.early = nil
	c.mu.Unlock()
	for _, ci := range early {
		if err := c.pc.AddICECandidate(ci); err != nil {
			c.logger.Warn().Err(err).Msg("buffered candidate rejected")
		}
	}
	return nil
}

// addICECandidate buffers candidates that arrive before the remote description.
func (c *connection) addICECandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	if !c.remoteSet {
		c.early = append(c.early, ci)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.pc.AddICECandidate(ci)
}

// close is idempotent; onClosed runs exactly once.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		go func() {
			if err := c.pc.Close(); err != nil {
				c.logger.Error().Err(err).Msg("close error")
			} else {
				c.logger.Info().Msg("closed")
			}
		}()
		if c.onClosed != nil {
			c.onClosed()
		}
	})
}
