package gateway

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 控制REST请求速率，避免触发交易所限流。
// Wait 直到拿到请求额度或 ctx 结束才返回。
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// TokenBucketLimiter refills credit continuously at rate per second up to
// burst. Each waiter debits its credit under the lock before sleeping, so
// concurrent callers queue behind each other's debt instead of all sleeping
// on the same deficit and overshooting the configured rate.
type TokenBucketLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

func NewTokenBucketLimiter(rate float64, burst int) *TokenBucketLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketLimiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   time.Now(),
	}
}

// Wait debits one request credit and sleeps off any deficit. A canceled ctx
// returns its error immediately; the debit is kept, which errs on the slow
// side rather than the limit-breaking side.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.tokens -= 1
	var deficit time.Duration
	if l.tokens < 0 {
		deficit = time.Duration(-l.tokens / l.rate * float64(time.Second))
	}
	l.mu.Unlock()

	if deficit <= 0 {
		return nil
	}
	timer := time.NewTimer(deficit)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
