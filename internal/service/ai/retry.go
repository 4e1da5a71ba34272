package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"chatcli/internal/models"
)

// RetryPolicy controls how transient provider failures are retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy waits 1s, 2s, 4s, 8s between five attempts.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    30 * time.Second,
	Multiplier:  2,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultRetryPolicy.Multiplier
	}
	return p
}

type retryGateway struct {
	next   Gateway
	policy RetryPolicy
	logf   func(format string, args ...any)
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next so that rate-limit and transient failures are retried
// with exponential delay. Other failures come back on the first attempt. logf
// receives one line per retry and may be nil.
func WithRetry(next Gateway, policy RetryPolicy, logf func(format string, args ...any)) Gateway {
	return &retryGateway{
		next:   next,
		policy: policy.normalized(),
		logf:   logf,
		sleep:  sleepContext,
	}
}

func (g *retryGateway) Send(ctx context.Context, conv []models.Message, opts Options) (*Reply, error) {
	b := &backoff.Backoff{
		Min:    g.policy.BaseDelay,
		Max:    g.policy.MaxDelay,
		Factor: g.policy.Multiplier,
	}
	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		reply, err := g.next.Send(ctx, conv, opts)
		if err == nil {
			return reply, nil
		}
		err = Classify(err)
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == g.policy.MaxAttempts {
			break
		}
		delay := b.Duration()
		if g.logf != nil {
			g.logf("[retry] attempt %d/%d failed (%v), waiting %s", attempt, g.policy.MaxAttempts, err, delay)
		}
		if err := g.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry aborted: %w", err)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, g.policy.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
