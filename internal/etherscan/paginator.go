package etherscan

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"

	"github.com/flare-foundation/evm-address-indexer/internal/timeutil"
)

const (
	defaultMaxAttempts = 3
	defaultRetryFloor  = time.Second
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetriesExhaustedError is returned when a page kept failing transiently.
// It matches both ErrRetriesExhausted and the last transient cause.
type RetriesExhaustedError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("page %d: %s after %d attempts: %v", e.Page, ErrRetriesExhausted, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

func (e *RetriesExhaustedError) Is(target error) bool { return target == ErrRetriesExhausted }

// PageFetcher requests one page of one category.
type PageFetcher[D any] func(ctx context.Context, page int) Outcome[D]

type Paginator struct {
	PageSize int
	// Delay is slept between successive pages.
	Delay time.Duration
	// MaxAttempts bounds the requests spent on one page that keeps failing
	// transiently. Defaults to 3.
	MaxAttempts int
	// RetryFloor is the minimum retry step; the n-th retry waits
	// n * max(Delay, RetryFloor). Defaults to one second.
	RetryFloor time.Duration
	// MaxPages stops after that many pages; 0 means no cap. Only tests set it.
	MaxPages int
}

// FetchAll walks pages from 1 until the explorer reports no records or
// returns a short page. Any fatal outcome aborts the walk.
func FetchAll[D any](ctx context.Context, p Paginator, fetch PageFetcher[D]) ([]D, error) {
	var all []D

	for page := 1; ; page++ {
		out, err := fetchWithRetry(ctx, p, page, fetch)
		if err != nil {
			return nil, err
		}

		if out.Kind == Empty {
			return all, nil
		}

		all = append(all, out.Items...)

		if len(out.Items) == 0 || len(out.Items) < p.PageSize {
			return all, nil
		}

		if p.MaxPages > 0 && page >= p.MaxPages {
			return all, nil
		}

		if err := timeutil.Sleep(ctx, p.Delay); err != nil {
			return nil, err
		}
	}
}

// fetchWithRetry repeats the same page while the outcome is transient.
func fetchWithRetry[D any](ctx context.Context, p Paginator, page int, fetch PageFetcher[D]) (Outcome[D], error) {
	var (
		out   Outcome[D]
		tries int
	)

	err := backoff.RetryNotify(
		func() error {
			tries++
			out = fetch(ctx, page)

			switch out.Kind {
			case TransientFailure:
				return out.Err
			case FatalFailure:
				return backoff.Permanent(out.Err)
			default:
				return nil
			}
		},
		p.newBackoff(ctx),
		func(err error, d time.Duration) {
			logger.Errorf("page %d fetch error: %v. Will retry after %v", page, err, d)
		},
	)
	if err != nil {
		if out.Kind == TransientFailure && ctx.Err() == nil {
			return out, &RetriesExhaustedError{Page: page, Attempts: tries, Err: out.Err}
		}
		return out, err
	}

	return out, nil
}

func (p Paginator) newBackoff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	floor := p.RetryFloor
	if floor <= 0 {
		floor = defaultRetryFloor
	}

	step := p.Delay
	if step < floor {
		step = floor
	}

	return backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: step}, uint64(attempts-1)),
		ctx,
	)
}

// linearBackOff waits step, 2*step, 3*step, ...
type linearBackOff struct {
	step    time.Duration
	attempt int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.step
}

func (b *linearBackOff) Reset() { b.attempt = 0 }
