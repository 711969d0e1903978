package rtc

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// msgType is a rendezvous server frame type.
type msgType string

const (
	msgOpen      msgType = "OPEN"
	msgIDTaken   msgType = "ID-TAKEN"
	msgError     msgType = "ERROR"
	msgHeartbeat msgType = "HEARTBEAT"
	msgOffer     msgType = "OFFER"
	msgAnswer    msgType = "ANSWER"
	msgCandidate msgType = "CANDIDATE"
	msgLeave     msgType = "LEAVE"
	msgExpire    msgType = "EXPIRE"
)

// connKind tells media calls apart from auxiliary data connections.
type connKind string

const (
	kindMedia connKind = "media"
	kindData  connKind = "data"
)

type message struct {
	Type    msgType  `json:"type"`
	Src     string   `json:"src,omitempty"`
	Dst     string   `json:"dst,omitempty"`
	Payload *payload `json:"payload,omitempty"`
}

type payload struct {
	SDP          *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate    *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Type         connKind                   `json:"type,omitempty"`
	ConnectionID string                     `json:"connectionId,omitempty"`
	Label        string                     `json:"label,omitempty"`
	Reliable     bool                       `json:"reliable,omitempty"`
	Msg          string                     `json:"msg,omitempty"`
}

func parseMessage(raw []byte) (message, error) {
	var m message
	err := json.Unmarshal(raw, &m)
	return m, err
}

// probeFrame is the body sent over a preflight data connection.
type probeFrame struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}
