package signal

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Channel) sendPing(conn *wsConn) error {
	return conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// armReadDeadline extends the read deadline; pongs and data both count as liveness.
func (c *Channel) armReadDeadline(conn *wsConn) {
	if c.cfg.PingPeriod <= 0 {
		return
	}
	wait := c.pongWait()
	if err := conn.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("set read deadline")
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(wait))
	})
}
