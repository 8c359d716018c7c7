package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy bounds how a read is retried. Zero fields take the defaults below.
type Policy struct {
	Attempts int           // total tries, first one included; default 3
	Base     time.Duration // delay before the first retry; default 200ms
	Cap      time.Duration // longest delay; default 5s
	// Jitter spreads each delay by up to ±Jitter of its value.
	Jitter float64
	// Retryable decides which failures are retried; IsTransient when nil.
	Retryable func(error) bool
	// Sleep waits between attempts; a context-aware timer when nil.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Base <= 0 {
		p.Base = 200 * time.Millisecond
	}
	if p.Cap <= 0 {
		p.Cap = 5 * time.Second
	}
	p.Jitter = math.Max(p.Jitter, 0)
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	return p
}

// delay is the wait after the given failed attempt (1-based): Base doubled
// per attempt, capped, then jittered.
func (p Policy) delay(attempt int) time.Duration {
	d := math.Min(float64(p.Base)*math.Exp2(float64(attempt-1)), float64(p.Cap))
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Read runs a read-only call under p. Only reads belong here: the call may
// run more than once. The last error is returned as is.
func Read[T any](ctx context.Context, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt == p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return v, err
		}

		wait := p.delay(attempt)
		zap.L().Warn("retrying read",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if serr := p.Sleep(ctx, wait); serr != nil {
			return v, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
