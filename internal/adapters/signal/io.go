package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (c *Channel) writePump(ctx context.Context, conn *wsConn) {
	var ping <-chan time.Time
	if c.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-ping:
			if err := c.sendPing(conn); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-conn.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := conn.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := conn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Channel) readPump(ctx context.Context, conn *wsConn) error {
	c.armReadDeadline(conn)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("module", "signal").Msg("readPump closing")
			return err
		}
		c.armReadDeadline(conn)
		c.handleSignal(data)
	}
}

func (c *Channel) handleSignal(data []byte) {
	ev, err := decode(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad signal")
		return
	}
	log.Debug().Str("module", "signal").Str("type", string(ev.Type)).Msg("recv")
	c.handler.HandleSignal(ev)
}
