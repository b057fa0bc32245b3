package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Notes receives human-readable retry notes so observers see retry activity
// without reading logs.
type Notes interface {
	AppendNote(note string)
}

// Invoker wraps provider calls with a bounded retry loop and fixed backoff.
type Invoker struct {
	maxRetries int
	delay      time.Duration
	limiter    *rate.Limiter
	sleep      func(ctx context.Context, d time.Duration) error
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRequestsPerMinute spaces out provider calls across all units sharing the invoker.
// rpm <= 0 disables limiting.
func WithRequestsPerMinute(rpm int) InvokerOption {
	return func(inv *Invoker) {
		if rpm <= 0 {
			inv.limiter = nil
			return
		}
		inv.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
}

// NewInvoker returns an invoker making at most maxRetries attempts per call and
// waiting delay between them.
func NewInvoker(maxRetries int, delay time.Duration, opts ...InvokerOption) *Invoker {
	if maxRetries < 1 {
		maxRetries = 1
	}
	inv := &Invoker{
		maxRetries: maxRetries,
		delay:      delay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// MaxRetries returns the attempt limit.
func (inv *Invoker) MaxRetries() int { return inv.maxRetries }

// Invoke calls p until it succeeds, fails with a non-retryable error, or the
// attempt limit is reached. notes may be nil.
func (inv *Invoker) Invoke(ctx context.Context, p Provider, req Request, notes Notes) (Reply, error) {
	for attempt := 1; ; attempt++ {
		if inv.limiter != nil {
			if err := inv.limiter.Wait(ctx); err != nil {
				return Reply{}, fmt.Errorf("rate limiter: %w", err)
			}
		}

		reply, err := p.Invoke(ctx, req)
		if err == nil {
			return reply, nil
		}
		if !IsRetryable(err) {
			return Reply{}, err
		}
		if attempt >= inv.maxRetries {
			return Reply{}, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}

		note := fmt.Sprintf("%v: retrying in %s (%d/%d)", ErrRateLimited, inv.delay, attempt, inv.maxRetries)
		if notes != nil {
			notes.AppendNote(note)
		}
		slog.Info("Provider call rate limited, will retry.",
			"model", req.Model,
			"attempt", attempt,
			"maxRetries", inv.maxRetries,
			"backoff", inv.delay.String(),
			"error", err,
		)

		if err := inv.sleep(ctx, inv.delay); err != nil {
			slog.Error("Context cancelled during backoff. Aborting retries.", "model", req.Model, "error", err)
			return Reply{}, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
