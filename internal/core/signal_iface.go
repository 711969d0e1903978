package core

import "github.com/dkeye/randomic/internal/domain"

// SignalChannel carries outbound intents to the matchmaking service.
// Owned by the adapter; the adapter reconnects on its own.
type SignalChannel interface {
	// Emit fails with domain.ErrSignalingUnreachable while disconnected.
	Emit(t domain.EventType, payload any) error
	Connected() bool
}

// SignalHandler consumes decoded inbound events and channel lifecycle changes.
type SignalHandler interface {
	HandleSignal(domain.SignalEvent)
}
