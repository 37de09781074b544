package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
)

// ErrMaxWaitsExceeded is returned by WaitForReset when a backend has been
// rate limited more often than BackoffConfig.MaxWaits allows.
var ErrMaxWaitsExceeded = errors.New("max rate-limit waits exceeded")

// BackoffConfig configures the RateLimitCoordinator.
type BackoffConfig struct {
	// DefaultWait is used when the backend names no reset time.
	DefaultWait time.Duration
	// MaxWaits is how many rate limits a backend may hit before
	// WaitForReset refuses to wait. Zero allows none.
	MaxWaits int
	// JitterFactor in [0, 1] spreads resumptions of concurrent workers.
	JitterFactor float64
}

// DefaultBackoffConfig returns a 60s default wait, 5 waits, 10% jitter.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		DefaultWait:  60 * time.Second,
		MaxWaits:     5,
		JitterFactor: 0.1,
	}
}

// LimitState is the rate-limit state of one backend.
type LimitState struct {
	Provider    string
	IsLimited   bool
	ResetAt     time.Time
	WaitCount   int
	LastMessage string
	UpdatedAt   time.Time
}

// RemainingWait returns the time left until the limit resets, or 0.
func (s *LimitState) RemainingWait() time.Duration {
	if !s.IsLimited {
		return 0
	}
	if remaining := time.Until(s.ResetAt); remaining > 0 {
		return remaining
	}
	return 0
}

// RateLimitCoordinator shares rate-limit state between goroutines calling
// the same backend, so one worker's 429 pauses its siblings too. It is owned
// by one CLI invocation and safe for concurrent use.
type RateLimitCoordinator struct {
	mu       sync.RWMutex
	states   map[string]*LimitState
	config   BackoffConfig
	onUpdate func(LimitState)
}

// NewRateLimitCoordinator creates a coordinator.
func NewRateLimitCoordinator(config BackoffConfig) *RateLimitCoordinator {
	return &RateLimitCoordinator{
		states: make(map[string]*LimitState),
		config: config,
	}
}

// SetUpdateCallback registers fn to observe state changes. fn runs outside
// the lock and must not block.
func (c *RateLimitCoordinator) SetUpdateCallback(fn func(LimitState)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// RecordRateLimit marks provider as limited for resetAfter (or DefaultWait
// when zero). Concurrent records only ever extend the window.
func (c *RateLimitCoordinator) RecordRateLimit(provider string, resetAfter time.Duration, message string) LimitState {
	wait := c.computeWait(resetAfter)
	now := time.Now()

	c.mu.Lock()
	s, ok := c.states[provider]
	if !ok {
		s = &LimitState{Provider: provider}
		c.states[provider] = s
	}
	s.IsLimited = true
	s.WaitCount++
	s.UpdatedAt = now
	if resetAt := now.Add(wait); resetAt.After(s.ResetAt) {
		s.ResetAt = resetAt
	}
	if message != "" {
		s.LastMessage = message
	}
	snapshot := *s
	cb := c.onUpdate
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
	return snapshot
}

// ClearRateLimit marks provider as usable again. WaitCount is kept.
func (c *RateLimitCoordinator) ClearRateLimit(provider string) {
	c.mu.Lock()
	s, ok := c.states[provider]
	if !ok || !s.IsLimited {
		c.mu.Unlock()
		return
	}
	s.IsLimited = false
	s.UpdatedAt = time.Now()
	snapshot := *s
	cb := c.onUpdate
	c.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// ShouldWait returns a copy of provider's state when a call must wait, or
// nil when it may proceed.
func (c *RateLimitCoordinator) ShouldWait(provider string) *LimitState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[provider]
	if !ok || !s.IsLimited || !s.ResetAt.After(time.Now()) {
		return nil
	}
	snapshot := *s
	return &snapshot
}

// WaitForReset blocks until provider's limit resets or ctx is done.
func (c *RateLimitCoordinator) WaitForReset(ctx context.Context, provider string) error {
	state := c.ShouldWait(provider)
	if state == nil {
		return nil
	}
	if c.ExceededMaxWaits(provider) {
		return fmt.Errorf("rate limit: max waits (%d) exceeded for provider %s: %w",
			c.config.MaxWaits, provider, ErrMaxWaitsExceeded)
	}

	remaining := state.RemainingWait()
	if remaining <= 0 {
		return nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExceededMaxWaits reports whether provider has used up its waits.
func (c *RateLimitCoordinator) ExceededMaxWaits(provider string) bool {
	if c.config.MaxWaits == 0 {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[provider]
	return ok && s.WaitCount > c.config.MaxWaits
}

// State returns a copy of provider's state, or nil when it was never
// limited.
func (c *RateLimitCoordinator) State(provider string) *LimitState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[provider]
	if !ok {
		return nil
	}
	snapshot := *s
	return &snapshot
}

func (c *RateLimitCoordinator) computeWait(resetAfter time.Duration) time.Duration {
	base := resetAfter
	if base <= 0 {
		base = c.config.DefaultWait
	}
	if c.config.JitterFactor > 0 {
		base += time.Duration(rand.Float64() * c.config.JitterFactor * float64(base))
	}
	return base
}

// Coordinated wraps a Provider so that every call waits out a rate limit
// recorded by any other caller of the same backend, and records the limits
// it hits itself.
type Coordinated struct {
	Provider
	coordinator *RateLimitCoordinator
}

// WithCoordinator returns p wrapped by c. A nil c returns p unchanged.
func WithCoordinator(p Provider, c *RateLimitCoordinator) Provider {
	if c == nil {
		return p
	}
	return &Coordinated{Provider: p, coordinator: c}
}

// Generate waits for any shared limit, then delegates.
func (w *Coordinated) Generate(ctx context.Context, prompt string, opts GenerateOpts) (string, error) {
	name := w.Name()
	if err := w.coordinator.WaitForReset(ctx, name); err != nil {
		if errors.Is(err, ErrMaxWaitsExceeded) {
			return "", apperr.ProviderFailure(name, apperr.ReasonRateLimit, err)
		}
		return "", err
	}

	out, err := w.Provider.Generate(ctx, prompt, opts)
	if err != nil {
		var pe *apperr.Error
		if errors.As(err, &pe) && pe.Reason == apperr.ReasonRateLimit {
			w.coordinator.RecordRateLimit(name, pe.RetryAfter, pe.Error())
		}
		return "", err
	}
	w.coordinator.ClearRateLimit(name)
	return out, nil
}
