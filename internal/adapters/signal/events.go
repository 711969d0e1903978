package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/randomic/internal/domain"
)

var errUnknownEvent = errors.New("unknown signal")

// envelope is the wire frame: {"type": "<event>", "data": <payload>}.
type envelope struct {
	Type domain.EventType `json:"type"`
	Data json.RawMessage  `json:"data,omitempty"`
}

type partnerPayload struct {
	PartnerID string `json:"partnerId"`
	Initiator bool   `json:"initiator,omitempty"`
}

func encode(t domain.EventType, payload any) ([]byte, error) {
	env := envelope{Type: t}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", t, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

func decode(raw []byte) (domain.SignalEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.SignalEvent{}, fmt.Errorf("bad json: %w", err)
	}
	ev := domain.SignalEvent{Type: env.Type}

	switch env.Type {
	case domain.EventUserCount:
		if err := json.Unmarshal(env.Data, &ev.Count); err != nil {
			return ev, fmt.Errorf("bad %s payload: %w", env.Type, err)
		}
	case domain.EventMatchFound, domain.EventStartCall, domain.EventPreflight:
		var p partnerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return ev, fmt.Errorf("bad %s payload: %w", env.Type, err)
		}
		partner, err := domain.ParsePeerID(p.PartnerID)
		if err != nil {
			return ev, fmt.Errorf("bad %s partner: %w", env.Type, err)
		}
		ev.Partner = partner
		ev.Initiator = p.Initiator
	case domain.EventReceiveMessage:
		if err := json.Unmarshal(env.Data, &ev.Text); err != nil {
			return ev, fmt.Errorf("bad %s payload: %w", env.Type, err)
		}
	case domain.EventPartnerDisconnected, domain.EventPeerNotReady:
	default:
		return ev, fmt.Errorf("%w: %q", errUnknownEvent, env.Type)
	}
	return ev, nil
}
