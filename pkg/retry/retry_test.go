package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-brain/pkg/domain"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Name: "test"}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRateLimit(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrRateLimited
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustedIsRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return domain.ErrRateLimited
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var re *domain.RetryableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 3, re.Attempts)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, domain.IsRetryable(err))
}

func TestDo_NonRetryablePropagatesImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return domain.ErrProvider
	})
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, 1, calls)
	assert.False(t, domain.IsRetryable(err))
}

func TestDo_CustomRetryable(t *testing.T) {
	boom := errors.New("boom")
	p := fastPolicy()
	p.Retryable = func(err error) bool { return errors.Is(err, boom) }

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, Name: "test"}

	calls := 0
	err := Do(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return domain.ErrRateLimited
	})
	assert.ErrorIs(t, err, domain.ErrDeadline)
	assert.Equal(t, 1, calls)
}

func TestDo_ExpiredContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err := Do(ctx, fastPolicy(), func(context.Context) error {
		t.Fatal("fn must not be called")
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrDeadline)
}

func TestDo_DelayDoubles(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond, Name: "test"}
	start := time.Now()
	_ = Do(context.Background(), p, func(context.Context) error {
		return domain.ErrRateLimited
	})
	// 20ms + 40ms between three attempts.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
