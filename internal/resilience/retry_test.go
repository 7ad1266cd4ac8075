package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
		ShouldRetry:    func(error) bool { return true },
	}
}

func TestDoVal_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(3), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, eris.New("flaky")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_NonTransientNotRetried(t *testing.T) {
	cfg := fastRetry(5)
	cfg.ShouldRetry = nil // use IsTransient

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("routing: element status NOT_FOUND")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastRetry(10), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, eris.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("routing: api status REQUEST_DENIED")))
	assert.True(t, IsTransient(eris.New("routing: status 503: unavailable")))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("routing: api status OVER_QUERY_LIMIT")))
}

func TestComputeBackoff_Caps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Multiplier:     10,
		JitterFraction: 0,
	})
	assert.Equal(t, 2*time.Second, computeBackoff(5, cfg))
}
