package barstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bikeshrana/ashare-backtest-go/internal/circuitbreaker"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// RateLimitedStore decorates a Store with a request-rate limiter and a
// circuit breaker, so a flaky or throttled upstream data service cannot
// starve the engine of CPU with tight retry loops. It implements Store
// directly so it is a drop-in replacement for the underlying service.
type RateLimitedStore struct {
	inner       Store
	limiter     *rate.Limiter
	breaker     *circuitbreaker.CircuitBreaker
	logger      zerolog.Logger
	deadline    time.Duration
	retryBudget int
}

// NewRateLimitedStore wraps inner with a token-bucket limiter allowing
// ratePerSecond requests per second (burst of the same size), a circuit
// breaker, per-call deadline, and retry budget for transient failures.
func NewRateLimitedStore(inner Store, ratePerSecond float64, deadline time.Duration, retryBudget int, logger zerolog.Logger) *RateLimitedStore {
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedStore{
		inner:       inner,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		breaker:     circuitbreaker.New(circuitbreaker.DefaultConfig("bar_store", logger)),
		logger:      logger,
		deadline:    deadline,
		retryBudget: retryBudget,
	}
}

// Bars fetches bars for one instrument, retrying recoverable failures
// up to the configured retry budget, each attempt bounded by deadline.
func (s *RateLimitedStore) Bars(ctx context.Context, instrument types.InstrumentCode, r types.DateRange, period types.Period) ([]types.Bar, error) {
	var lastErr error
	attempts := s.retryBudget + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if s.deadline > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.deadline)
		}

		var bars []types.Bar
		err := s.breaker.Execute(func() error {
			var fetchErr error
			bars, fetchErr = s.inner.Bars(callCtx, instrument, r, period)
			return fetchErr
		})
		timedOut := callCtx.Err() == context.DeadlineExceeded
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return bars, nil
		}

		lastErr = err
		if timedOut {
			lastErr = fmt.Errorf("fetching bars for %s: %w", instrument, context.DeadlineExceeded)
		}
		s.logger.Warn().
			Err(err).
			Str("instrument", string(instrument)).
			Int("attempt", attempt+1).
			Msg("bar fetch failed, will retry if budget remains")
	}
	return nil, fmt.Errorf("bar fetch for %s exhausted retry budget: %w", instrument, lastErr)
}

func (s *RateLimitedStore) Instruments(ctx context.Context, market string) ([]types.InstrumentCode, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Instruments(ctx, market)
}

func (s *RateLimitedStore) Members(ctx context.Context, indexName string) ([]types.InstrumentCode, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Members(ctx, indexName)
}
