package rtc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/randomic/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// probeLinger bounds how long an inbound probe connection may stay open.
const probeLinger = 10 * time.Second

// Probe opens a short-lived data connection to target, sends one timestamped
// frame and closes it after linger. It warms NAT bindings before the call.
func (p *Peer) Probe(ctx context.Context, target domain.PeerID, linger time.Duration) error {
	if !p.Open() {
		return domain.ErrTransportUnavailable
	}
	id := "dc_" + uuid.NewString()
	conn, err := p.newConnection(id, target, kindData)
	if err != nil {
		return err
	}
	conn.onClosed = func() { p.forget(id) }
	p.register(conn)
	defer conn.close()

	dc, err := conn.pc.CreateDataChannel(id, nil)
	if err != nil {
		return domain.Wrap(domain.KindTransportUnavailable, "probe", err)
	}
	opened := make(chan struct{})
	var openOnce sync.Once
	dc.OnOpen(func() { openOnce.Do(func() { close(opened) }) })

	offer, err := conn.createOffer(ctx)
	if err != nil {
		return domain.Wrap(domain.KindTransportUnavailable, "probe offer", err)
	}
	err = p.send(message{
		Type: msgOffer,
		Dst:  target.String(),
		Payload: &payload{
			SDP:          offer,
			Type:         kindData,
			ConnectionID: id,
			Label:        id,
			Reliable:     true,
		},
	})
	if err != nil {
		return err
	}

	select {
	case <-opened:
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.ctx.Done():
		return domain.Errorf(domain.KindTransportUnavailable, "probe", "connection closed before open")
	}

	frame, _ := json.Marshal(probeFrame{Type: "preflight", TS: p.clock.Now().UnixMilli()})
	if err := dc.SendText(string(frame)); err != nil {
		return domain.Wrap(domain.KindTransportUnavailable, "probe send", err)
	}
	conn.logger.Debug().Msg("probe sent")

	select {
	case <-p.clock.After(linger):
	case <-ctx.Done():
	}
	return nil
}

// acceptProbe answers a remote preflight offer. The connection only logs
// what it receives and is dropped after probeLinger.
func (p *Peer) acceptProbe(ctx context.Context, src domain.PeerID, offer *payload) {
	conn, err := p.newConnection(offer.ConnectionID, src, kindData)
	if err != nil {
		p.logger.Warn().Err(err).Msg("probe connection")
		return
	}
	conn.onClosed = func() { p.forget(conn.id) }
	p.register(conn)

	conn.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			conn.logger.Debug().Int("bytes", len(msg.Data)).Msg("probe received")
		})
		dc.OnClose(conn.close)
	})
	p.clock.AfterFunc(probeLinger, conn.close)

	answer, err := conn.applyOfferAndCreateAnswer(ctx, *offer.SDP)
	if err != nil {
		conn.logger.Warn().Err(err).Msg("probe answer")
		conn.close()
		return
	}
	err = p.send(message{
		Type: msgAnswer,
		Dst:  src.String(),
		Payload: &payload{
			SDP:          answer,
			Type:         kindData,
			ConnectionID: conn.id,
		},
	})
	if err != nil {
		conn.logger.Warn().Err(err).Msg("probe answer send")
		conn.close()
	}
}
