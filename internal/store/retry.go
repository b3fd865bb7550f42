package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"pricewatch/internal/logger"
)

// RetryPolicy is a fixed-delay, bounded retry policy.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy returns 3 attempts with 2 seconds between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Delay:    2 * time.Second,
	}
}

// Retrying wraps a Store and retries every call that fails with ErrTransient.
type Retrying struct {
	next   Store
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	log    zerolog.Logger
}

// WithRetry wraps next with policy. Attempts below 1 are treated as 1.
func WithRetry(next Store, policy RetryPolicy) *Retrying {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Retrying{
		next:   next,
		policy: policy,
		sleep:  sleepContext,
		log:    logger.WithComponent("store-retry"),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Retrying) do(ctx context.Context, op, table string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == r.policy.Attempts {
			break
		}

		r.log.Warn().
			Err(err).
			Str("op", op).
			Str("table", table).
			Int("attempt", attempt).
			Dur("delay", r.policy.Delay).
			Msg("Transient store error, retrying")

		if serr := r.sleep(ctx, r.policy.Delay); serr != nil {
			return NewError(op, table, serr)
		}
	}

	r.log.Error().
		Err(err).
		Str("op", op).
		Str("table", table).
		Int("attempts", r.policy.Attempts).
		Msg("Store unavailable after retries")

	return NewError(op, table, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, r.policy.Attempts, err))
}

// EnsureTable implements Store.
func (r *Retrying) EnsureTable(ctx context.Context, table string, header []string) error {
	return r.do(ctx, "EnsureTable", table, func() error {
		return r.next.EnsureTable(ctx, table, header)
	})
}

// ReadRows implements Store.
func (r *Retrying) ReadRows(ctx context.Context, table string) ([][]string, error) {
	var rows [][]string
	err := r.do(ctx, "ReadRows", table, func() error {
		var err error
		rows, err = r.next.ReadRows(ctx, table)
		return err
	})
	return rows, err
}

// AppendRow implements Store.
func (r *Retrying) AppendRow(ctx context.Context, table string, row []string) error {
	return r.do(ctx, "AppendRow", table, func() error {
		return r.next.AppendRow(ctx, table, row)
	})
}

// UpdateRow implements Store.
func (r *Retrying) UpdateRow(ctx context.Context, table string, index int, row []string) error {
	return r.do(ctx, "UpdateRow", table, func() error {
		return r.next.UpdateRow(ctx, table, index, row)
	})
}

// DeleteRow implements Store.
func (r *Retrying) DeleteRow(ctx context.Context, table string, index int) error {
	return r.do(ctx, "DeleteRow", table, func() error {
		return r.next.DeleteRow(ctx, table, index)
	})
}

// ReplaceRows implements Store.
func (r *Retrying) ReplaceRows(ctx context.Context, table string, rows [][]string) error {
	return r.do(ctx, "ReplaceRows", table, func() error {
		return r.next.ReplaceRows(ctx, table, rows)
	})
}
