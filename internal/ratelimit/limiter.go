// Package ratelimit provides per-key token bucket rate limiting for the
// tool server. Costs let expensive calls (many simulation steps) draw more
// than one token.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned by CheckLimit and CheckCost when a bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter implements a per-key token bucket rate limiter.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   float64          // bucket capacity and initial token count
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
func NewLimiter(rate, burst float64) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() float64 { return l.burst }

// Allow is AllowN(key, 1).
func (l *Limiter) Allow(key string) bool { return l.AllowN(key, 1) }

// AllowN takes cost tokens from key's bucket if it holds that many. A cost
// above the burst can never be satisfied.
func (l *Limiter) AllowN(key string, cost float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastCheck: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.lastCheck).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, l.burst)
		b.lastCheck = now
	}

	if b.tokens < cost {
		return false
	}
	b.tokens -= cost
	return true
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default per-tool limiters. gas_step is
// charged per simulation step, the rest per call.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"gas_step":           NewLimiter(50000, 200000), // steps
		"gas_observe":        NewLimiter(20, 50),
		"gas_render":         NewLimiter(2, 5),
		"gas_set_parameter":  NewLimiter(5, 20),
		"gas_set_divider":    NewLimiter(2, 5),
		"gas_place_particle": NewLimiter(20, 200),
		"gas_reset":          NewLimiter(1, 3),
	}
}

// CheckLimit charges one token to toolName's limiter.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	return CheckCost(limiters, toolName, 1)
}

// CheckCost charges cost tokens to toolName's limiter. Tools without a
// configured limiter are always allowed.
func CheckCost(limiters ToolLimiters, toolName string, cost float64) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if cost > limiter.burst {
		return fmt.Errorf("%w for %s: cost %g exceeds the burst of %g", ErrRateLimited, toolName, cost, limiter.burst)
	}
	if !limiter.AllowN(toolName, cost) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}
	return nil
}
