// Package await polls a readiness predicate on a fixed interval.
package await

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/randomic/internal/clock"
)

// ErrNotReady is returned when the predicate never held within the budget.
var ErrNotReady = errors.New("condition not met")

// Gate describes one bounded readiness wait.
type Gate struct {
	Interval time.Duration
	Attempts int
}

// Until evaluates ready immediately and then once per Interval, up to
// Attempts additional times. It returns nil as soon as ready holds,
// ErrNotReady when the budget is spent, or the context error on cancel.
func Until(ctx context.Context, clk clock.Clock, g Gate, ready func() bool) error {
	for try := 0; ; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ready() {
			return nil
		}
		if try >= g.Attempts {
			return fmt.Errorf("%w after %d attempts", ErrNotReady, try+1)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(g.Interval):
		}
	}
}

// All combines predicates; it holds only when every one does.
func All(preds ...func() bool) func() bool {
	return func() bool {
		for _, p := range preds {
			if !p() {
				return false
			}
		}
		return true
	}
}
