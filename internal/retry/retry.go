// Package retry provides a bounded retry loop with a fixed inter-attempt delay.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmarion/flash32w/protocol"
)

// ErrStop aborts a retry loop early. A function returning an error that wraps
// ErrStop is not retried and Do returns that error unchanged.
var ErrStop = errors.New("retry: stop")

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the maximum number of calls, at least 1
	Attempts int

	// Delay is slept between attempts, never before the first one
	Delay time.Duration

	// Sleep replaces the default context-aware sleep (optional)
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it returns nil, at most p.Attempts times. On exhaustion the
// returned error matches protocol.ErrTimeout and wraps the last failure.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Delay > 0 {
			if err := p.sleep(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(i)
		if last == nil {
			return nil
		}
		if errors.Is(last, ErrStop) {
			return last
		}
	}

	return protocol.WrapError("retry", protocol.ErrTimeout,
		fmt.Errorf("gave up after %d attempts: %w", attempts, last))
}

func (p Policy) sleep(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Delay)
	}
	return sleep(ctx, p.Delay)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
