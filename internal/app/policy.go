package app

type DeadlineAction int

const (
	// RetryAttempt closes the stale Call Attempt and starts another one.
	RetryAttempt DeadlineAction = iota
	// AbortMatch drops the pairing and goes back to matchmaking.
	AbortMatch
)

func (a DeadlineAction) String() string {
	switch a {
	case RetryAttempt:
		return "retry"
	case AbortMatch:
		return "abort"
	}
	return "unknown"
}

// Policy decides what a missed connection deadline means.
type Policy interface {
	OnDeadline(attempt int) DeadlineAction
}

// AttemptPolicy allows MaxAttempts Call Attempts per match.
type AttemptPolicy struct {
	MaxAttempts int
}

func (p AttemptPolicy) OnDeadline(attempt int) DeadlineAction {
	if attempt < p.MaxAttempts {
		return RetryAttempt
	}
	return AbortMatch
}
