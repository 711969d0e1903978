package core

import (
	"context"
	"time"

	"github.com/dkeye/randomic/internal/domain"
)

// AttemptHandlers receive the terminal events of one Call Attempt.
// They may be invoked from transport goroutines.
type AttemptHandlers struct {
	OnStream func(CallAttempt)
	OnClosed func(CallAttempt)
	OnError  func(CallAttempt, error)
}

// CallAttempt is one in-flight negotiation with a partner.
type CallAttempt interface {
	ID() string
	Peer() domain.PeerID
	// Close tears down the transport-level call; OnClosed fires once.
	Close() error
}

// IncomingCall is an offer waiting for a local stream.
type IncomingCall interface {
	ID() string
	Peer() domain.PeerID
	Answer(stream LocalStream, h AttemptHandlers) (CallAttempt, error)
	Reject()
}

// TransportPeer is this client's presence on the rendezvous network.
type TransportPeer interface {
	// ID is empty until the identity is open.
	ID() domain.PeerID
	Open() bool
	// Call fails with domain.ErrTransportUnavailable when the identity is not open.
	Call(target domain.PeerID, stream LocalStream, h AttemptHandlers) (CallAttempt, error)
	// Probe opens an auxiliary data connection, sends a timestamped probe and
	// closes it after linger.
	Probe(ctx context.Context, target domain.PeerID, linger time.Duration) error
}

// TransportHandler consumes inbound offers and identity changes.
type TransportHandler interface {
	OnIncomingCall(IncomingCall)
	OnIdentity(domain.PeerID)
}
