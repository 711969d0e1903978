// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxPeerIDLen = 64

var (
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDTooLong = errors.New("peer id too long")
)

// PeerID is an opaque identity on the rendezvous network.
type PeerID string

// NewPeerID is a tiny helper to avoid ad-hoc id generation in adapters.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// ParsePeerID validates an identity received from the wire.
func ParsePeerID(raw string) (PeerID, error) {
	if len(raw) == 0 {
		return "", ErrPeerIDEmpty
	}
	if len(raw) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return PeerID(raw), nil
}

func (p PeerID) String() string { return string(p) }
