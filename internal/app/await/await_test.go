package await

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/randomic/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestUntilImmediate(t *testing.T) {
	calls := 0
	err := Until(context.Background(), clock.NewFake(time.Unix(0, 0)), Gate{Interval: time.Second, Attempts: 3}, func() bool {
		calls++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntilEventually(t *testing.T) {
	calls := 0
	err := Until(context.Background(), clock.Real(), Gate{Interval: time.Millisecond, Attempts: 10}, func() bool {
		calls++
		return calls == 4
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestUntilExhausted(t *testing.T) {
	calls := 0
	err := Until(context.Background(), clock.Real(), Gate{Interval: time.Millisecond, Attempts: 12}, func() bool {
		calls++
		return false
	})
	require.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, 13, calls)
}

func TestUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Until(ctx, clock.NewFake(time.Unix(0, 0)), Gate{Interval: time.Hour, Attempts: 5}, func() bool { return false })
	}()
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Until did not observe cancellation")
	}
}

func TestAll(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }
	assert.True(t, All(yes, yes)())
	assert.False(t, All(yes, no)())
	assert.True(t, All()())
}
