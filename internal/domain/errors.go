package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures the orchestrator knows how to recover from.
type Kind string

const (
	KindUnknown              Kind = ""
	KindDeviceUnavailable    Kind = "DeviceUnavailable"
	KindSignalingUnreachable Kind = "SignalingUnreachable"
	KindTransportUnavailable Kind = "TransportUnavailable"
	KindNegotiationTimeout   Kind = "NegotiationTimeout"
	KindProtocolAnomaly      Kind = "ProtocolAnomaly"
)

var (
	ErrDeviceUnavailable    = &Error{Kind: KindDeviceUnavailable, Op: "acquire"}
	ErrSignalingUnreachable = &Error{Kind: KindSignalingUnreachable, Op: "emit"}
	ErrTransportUnavailable = &Error{Kind: KindTransportUnavailable, Op: "call"}
	ErrNegotiationTimeout   = &Error{Kind: KindNegotiationTimeout, Op: "connect"}
	ErrProtocolAnomaly      = &Error{Kind: KindProtocolAnomaly, Op: "match"}
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrEmptyMessage = errors.New("empty message")
	ErrRateLimited  = errors.New("rate limited")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind so callers can test against the
// package sentinels regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds a kinded error around a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the outermost kind found in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
