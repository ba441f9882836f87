package reasoning

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"claimflow/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackReasoner tries reasoners in order, skipping those whose circuit is
// open after a rate limit. It implements port.Reasoner.
type FallbackReasoner struct {
	reasoners []port.Reasoner
	circuits  []*circuitState
	names     []string
	now       func() time.Time
}

// NewFallbackReasoner creates a FallbackReasoner from an ordered list of reasoners and their names.
func NewFallbackReasoner(reasoners []port.Reasoner, names []string) *FallbackReasoner {
	circuits := make([]*circuitState, len(reasoners))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackReasoner{
		reasoners: reasoners,
		circuits:  circuits,
		names:     names,
		now:       time.Now,
	}
}

func (f *FallbackReasoner) Complete(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	now := f.now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, r := range f.reasoners {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			zap.L().Info("reasoning.FallbackReasoner: skipping provider, circuit open",
				zap.String("provider", f.names[i]), zap.Time("reset_at", resetAt))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := r.Complete(ctx, req)
		if err == nil {
			return out, nil
		}

		zap.L().Warn("reasoning.FallbackReasoner: provider failed",
			zap.String("provider", f.names[i]), zap.Error(err))
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", "", errors.New("all reasoners rate limited"), retryAfter)
	}

	return nil, eris.Wrap(lastErr, "reasoning: all reasoners failed")
}
