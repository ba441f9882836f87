package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"claimflow/internal/domain"
	"claimflow/internal/resilience"
)

// Runner processes one claim bundle to a terminal Result.
type Runner interface {
	Run(ctx context.Context, bundle domain.ClaimBundle) Result
}

// BatchOptions configures a BatchRunner.
type BatchOptions struct {
	// Concurrency bounds the number of claims in flight. Default: 4.
	Concurrency int
	// RatePerSecond limits claim starts. Zero means unlimited.
	RatePerSecond float64
	// MaxAttempts is the number of runs per claim when a failure is
	// transient. Default: 1.
	MaxAttempts int
	// ClaimTimeout bounds each claim, including its retries. Zero means no
	// deadline.
	ClaimTimeout time.Duration
	// Retry overrides the backoff settings. MaxAttempts above still wins.
	Retry *resilience.RetryConfig
}

// BatchRunner runs many claims concurrently. Claims are independent; a
// failed claim never stops the others.
type BatchRunner struct {
	runner  Runner
	opts    BatchOptions
	limiter *rate.Limiter
}

// NewBatchRunner creates a BatchRunner around runner.
func NewBatchRunner(runner Runner, opts BatchOptions) *BatchRunner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	b := &BatchRunner{runner: runner, opts: opts}
	if opts.RatePerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return b
}

// RunAll processes bundles and returns their results in input order. sink,
// when not nil, is called as each claim finishes and may be called
// concurrently. RunAll returns an error only when ctx ends before every claim
// started; results of claims that did run are still returned.
func (b *BatchRunner) RunAll(ctx context.Context, bundles []domain.ClaimBundle, sink func(Result)) ([]Result, error) {
	results := make([]Result, len(bundles))

	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)

	var startErr error
	for i, bundle := range bundles {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				startErr = eris.Wrap(err, "pipeline: batch interrupted")
				break
			}
		} else if err := ctx.Err(); err != nil {
			startErr = eris.Wrap(err, "pipeline: batch interrupted")
			break
		}

		g.Go(func() error {
			res := b.runOne(ctx, bundle)
			results[i] = res
			if sink != nil {
				sink(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	if startErr != nil {
		zap.L().Warn("pipeline.BatchRunner: stopped before all claims started", zap.Error(startErr))
		return results, startErr
	}
	return results, nil
}

// runOne runs a single claim with the per-claim deadline and caller-level
// retry of transient failures.
func (b *BatchRunner) runOne(ctx context.Context, bundle domain.ClaimBundle) Result {
	if b.opts.ClaimTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.ClaimTimeout)
		defer cancel()
	}

	cfg := resilience.DefaultRetryConfig(b.opts.MaxAttempts)
	if b.opts.Retry != nil {
		cfg = *b.opts.Retry
		cfg.MaxAttempts = b.opts.MaxAttempts
	}
	cfg.OnRetry = resilience.RetryLogger("claim run", zap.String("claim_id", bundle.ClaimID))

	var last Result
	attempts := 0
	_, _ = resilience.DoVal(ctx, cfg, func(ctx context.Context) (Result, error) {
		attempts++
		last = b.runner.Run(ctx, bundle)
		if last.Failure != nil && last.Failure.Err != nil {
			return last, last.Failure.Err
		}
		return last, nil
	})
	last.Attempts = attempts
	return last
}
