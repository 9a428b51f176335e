package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/unitshift/internal/common"
)

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := Sleep
	Sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { Sleep = orig })
	return &waits
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	waits := noSleep(t)
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3, Backoff: time.Second}, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("rpc server unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *waits)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	noSleep(t)
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3}, func(attempt int) error {
		calls++
		return common.Transient("poll", errors.New("busy"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, common.FaultTransient, common.KindOf(err))
}

func TestDo_StopsOnNonTransientFault(t *testing.T) {
	noSleep(t)
	calls := 0
	err := Do(context.Background(), Policy{Attempts: 3}, func(int) error {
		calls++
		return common.Structural("member missing", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContextStopsBackoff(t *testing.T) {
	noSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, Policy{Attempts: 3, Backoff: time.Second}, func(int) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestValue(t *testing.T) {
	noSleep(t)
	v, err := Value(context.Background(), Policy{Attempts: 2}, func(attempt int) (string, error) {
		if attempt == 1 {
			return "", errors.New("not yet")
		}
		return "ready", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}
