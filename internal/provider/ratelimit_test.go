package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
)

// newNoJitterCoordinator makes timing assertions exact.
func newNoJitterCoordinator(defaultWait time.Duration, maxWaits int) *RateLimitCoordinator {
	return NewRateLimitCoordinator(BackoffConfig{DefaultWait: defaultWait, MaxWaits: maxWaits})
}

func TestDefaultBackoffConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultBackoffConfig()
	assert.Equal(t, 60*time.Second, cfg.DefaultWait)
	assert.Equal(t, 5, cfg.MaxWaits)
	assert.Equal(t, 0.1, cfg.JitterFactor)
}

func TestCoordinator_RecordAndClear(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Minute, 3)
	assert.Nil(t, c.ShouldWait("openai"))
	assert.Nil(t, c.State("openai"))

	state := c.RecordRateLimit("openai", 0, "429")
	assert.True(t, state.IsLimited)
	assert.Equal(t, 1, state.WaitCount)
	assert.Equal(t, "429", state.LastMessage)
	assert.InDelta(t, time.Minute.Seconds(), state.RemainingWait().Seconds(), 1)

	require.NotNil(t, c.ShouldWait("openai"))
	assert.Nil(t, c.ShouldWait("claude"), "limits are per provider")

	c.ClearRateLimit("openai")
	assert.Nil(t, c.ShouldWait("openai"))
	got := c.State("openai")
	require.NotNil(t, got)
	assert.False(t, got.IsLimited)
	assert.Equal(t, 1, got.WaitCount)
	assert.Zero(t, got.RemainingWait())
}

func TestCoordinator_RecordOnlyExtends(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Second, 5)
	long := c.RecordRateLimit("p", time.Hour, "")
	short := c.RecordRateLimit("p", time.Second, "second")
	assert.Equal(t, long.ResetAt, short.ResetAt)
	assert.Equal(t, 2, short.WaitCount)
	assert.Equal(t, "second", short.LastMessage)
}

func TestCoordinator_UpdateCallback(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Second, 5)
	var mu sync.Mutex
	var seen []bool
	c.SetUpdateCallback(func(s LimitState) {
		mu.Lock()
		seen = append(seen, s.IsLimited)
		mu.Unlock()
	})

	c.RecordRateLimit("p", time.Second, "")
	c.ClearRateLimit("p")
	c.ClearRateLimit("p")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestCoordinator_WaitForReset(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Second, 5)
	require.NoError(t, c.WaitForReset(context.Background(), "p"), "no limit means no wait")

	c.RecordRateLimit("p", 50*time.Millisecond, "")
	start := time.Now()
	require.NoError(t, c.WaitForReset(context.Background(), "p"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestCoordinator_WaitForResetCancelled(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Second, 5)
	c.RecordRateLimit("p", time.Hour, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitForReset(ctx, "p"), context.DeadlineExceeded)
}

func TestCoordinator_MaxWaits(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Hour, 1)
	c.RecordRateLimit("p", 0, "")
	assert.False(t, c.ExceededMaxWaits("p"))
	c.RecordRateLimit("p", 0, "")
	assert.True(t, c.ExceededMaxWaits("p"))
	assert.ErrorIs(t, c.WaitForReset(context.Background(), "p"), ErrMaxWaitsExceeded)

	assert.True(t, newNoJitterCoordinator(time.Second, 0).ExceededMaxWaits("any"))
}

func TestWithCoordinator_NilReturnsProvider(t *testing.T) {
	t.Parallel()

	m := NewMockProvider("mock")
	assert.Same(t, Provider(m), WithCoordinator(m, nil))
}

func TestCoordinated_RecordsAndClears(t *testing.T) {
	t.Parallel()

	limited := apperr.ProviderFailure("mock", apperr.ReasonRateLimit, errors.New("429"))
	limited.RetryAfter = 30 * time.Millisecond

	m := NewMockProvider("mock", "", "ok")
	m.Errors = []error{limited}
	c := newNoJitterCoordinator(time.Second, 5)
	p := WithCoordinator(m, c)
	assert.Equal(t, "mock", p.Name())

	_, err := p.Generate(context.Background(), "x", GenerateOpts{})
	require.Error(t, err)
	require.NotNil(t, c.ShouldWait("mock"))

	start := time.Now()
	out, err := p.Generate(context.Background(), "x", GenerateOpts{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond, "second call waits out the shared limit")
	assert.Nil(t, c.ShouldWait("mock"))
}

func TestCoordinated_MaxWaitsIsFinal(t *testing.T) {
	t.Parallel()

	c := newNoJitterCoordinator(time.Hour, 1)
	c.RecordRateLimit("mock", 0, "")
	c.RecordRateLimit("mock", 0, "")

	m := NewMockProvider("mock")
	p := WithCoordinator(m, c)

	calls := 0
	err := Retry(context.Background(), fastRetry(3), nil, "gen", func(ctx context.Context) error {
		calls++
		_, err := p.Generate(ctx, "x", GenerateOpts{})
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxWaitsExceeded)
	assert.Equal(t, 1, calls)
	assert.Zero(t, m.CallCount(), "the backend is never called")
}
