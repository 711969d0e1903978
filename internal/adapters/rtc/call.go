package rtc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/randomic/internal/core"
	"github.com/dkeye/randomic/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

var errAlreadyHandled = errors.New("incoming call already handled")

// mediaCall is one Call Attempt. Exactly one of OnError or OnClosed fires,
// and OnStream fires at most once before it. Handlers run on their own
// goroutine.
type mediaCall struct {
	p    *Peer
	conn *connection
	h    core.AttemptHandlers

	streaming atomic.Bool
	endOnce   sync.Once
}

func (c *mediaCall) ID() string          { return c.conn.id }
func (c *mediaCall) Peer() domain.PeerID { return c.conn.peer }

func (c *mediaCall) Close() error {
	c.conn.close()
	return nil
}

func (c *mediaCall) fail(err error) {
	c.endOnce.Do(func() {
		c.conn.logger.Warn().Err(err).Msg("call failed")
		if c.h.OnError != nil {
			go c.h.OnError(c, err)
		}
	})
	c.conn.close()
}

func (c *mediaCall) closed() {
	c.p.forget(c.conn.id)
	c.endOnce.Do(func() {
		if c.h.OnClosed != nil {
			go c.h.OnClosed(c)
		}
	})
}

func (c *mediaCall) track(ctx context.Context, track *webrtc.TrackRemote) {
	if track.Kind() != webrtc.RTPCodecTypeAudio {
		return
	}
	if c.streaming.CompareAndSwap(false, true) && c.h.OnStream != nil {
		go c.h.OnStream(c)
	}
	go newPlayback(track, c.p.sink, c.conn.logger).loop(ctx)
}

func (p *Peer) newMediaCall(id string, peer domain.PeerID, stream core.LocalStream, h core.AttemptHandlers) (*mediaCall, error) {
	if stream == nil || stream.Stopped() {
		return nil, domain.Errorf(domain.KindDeviceUnavailable, "call", "no live local stream")
	}
	conn, err := p.newConnection(id, peer, kindMedia)
	if err != nil {
		return nil, err
	}
	call := &mediaCall{p: p, conn: conn, h: h}
	conn.onTrack = call.track
	conn.onClosed = call.closed
	if err := conn.addLocalTrack(stream.Track()); err != nil {
		conn.close()
		return nil, domain.Wrap(domain.KindTransportUnavailable, "add track", err)
	}
	p.mu.Lock()
	p.conns[id] = conn
	p.calls[id] = call
	p.mu.Unlock()
	return call, nil
}

// Call dials target with stream. Negotiation continues in the background;
// its outcome arrives through h.
func (p *Peer) Call(target domain.PeerID, stream core.LocalStream, h core.AttemptHandlers) (core.CallAttempt, error) {
	if !p.Open() {
		return nil, domain.ErrTransportUnavailable
	}
	call, err := p.newMediaCall("mc_"+uuid.NewString(), target, stream, h)
	if err != nil {
		return nil, err
	}
	call.conn.logger.Info().Msg("calling")

	go func() {
		offer, err := call.conn.createOffer(call.conn.ctx)
		if err != nil {
			call.fail(domain.Wrap(domain.KindTransportUnavailable, "offer", err))
			return
		}
		err = p.send(message{
			Type: msgOffer,
			Dst:  target.String(),
			Payload: &payload{
				SDP:          offer,
				Type:         kindMedia,
				ConnectionID: call.ID(),
			},
		})
		if err != nil {
			call.fail(err)
		}
	}()
	return call, nil
}

// incomingCall is an offer parked until the session answers or drops it.
type incomingCall struct {
	p     *Peer
	id    string
	peer  domain.PeerID
	offer webrtc.SessionDescription

	mu      sync.Mutex
	handled bool
	early   []webrtc.ICECandidateInit
}

func (in *incomingCall) ID() string          { return in.id }
func (in *incomingCall) Peer() domain.PeerID { return in.peer }

func (in *incomingCall) addCandidate(ci webrtc.ICECandidateInit) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.early = append(in.early, ci)
}

func (in *incomingCall) take() ([]webrtc.ICECandidateInit, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.handled {
		return nil, false
	}
	in.handled = true
	early := in.early
	in.early = nil
	return early, true
}

func (in *incomingCall) Reject() {
	if _, ok := in.take(); !ok {
		return
	}
	in.p.forget(in.id)
	in.p.logger.Info().Str("conn", in.id).Str("partner", in.peer.String()).Msg("incoming call dropped")
}

// Answer accepts the offer with stream. The answer is sent once candidates
// are gathered.
func (in *incomingCall) Answer(stream core.LocalStream, h core.AttemptHandlers) (core.CallAttempt, error) {
	early, ok := in.take()
	if !ok {
		return nil, errAlreadyHandled
	}
	p := in.p
	p.mu.Lock()
	delete(p.offers, in.id)
	p.mu.Unlock()

	call, err := p.newMediaCall(in.id, in.peer, stream, h)
	if err != nil {
		return nil, err
	}
	for _, ci := range early {
		_ = call.conn.addICECandidate(ci)
	}
	call.conn.logger.Info().Msg("answering")

	go func() {
		answer, err := call.conn.applyOfferAndCreateAnswer(call.conn.ctx, in.offer)
		if err != nil {
			call.fail(domain.Wrap(domain.KindTransportUnavailable, "answer", err))
			return
		}
		err = p.send(message{
			Type: msgAnswer,
			Dst:  in.peer.String(),
			Payload: &payload{
				SDP:          answer,
				Type:         kindMedia,
				ConnectionID: in.id,
			},
		})
		if err != nil {
			call.fail(err)
		}
	}()
	return call, nil
}
