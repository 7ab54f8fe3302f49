package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter wraps a token-bucket rate limiter for outbound provider calls.
type Limiter struct {
	limiter  *rate.Limiter
	provider string
}

// NewLimiter creates a rate limiter that allows rps requests per second
// with a burst capacity of burst tokens.
func NewLimiter(rps float64, burst int, provider string) *Limiter {
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		provider: provider,
	}
}

// Every creates a limiter that spaces calls at least interval apart.
// With burst 1 the first call passes immediately and each subsequent
// call waits out the remaining interval.
func Every(interval time.Duration, provider string) *Limiter {
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		provider: provider,
	}
}

// Wait blocks until the limiter allows one event, or ctx is done.
// Uses Reserve() to guarantee exactly one token is consumed per call.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.ProviderRateLimitWaits.WithLabelValues(l.provider).Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}
