package backtest

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bikeshrana/ashare-backtest-go/internal/barstore"
	"github.com/bikeshrana/ashare-backtest-go/internal/runmetrics"
	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// RunSpec is one disjoint-portfolio run in a parallel batch: its own
// Config and instrument universe, sharing the batch's immutable
// ScoreTable and Top-K Index.
type RunSpec struct {
	Name        string
	Config      Config
	Instruments []types.InstrumentCode
	SignalCfg   signal.Config
}

// RunOutcome pairs a RunSpec's name with its Result (nil on error) and
// any error encountered.
type RunOutcome struct {
	Name   string
	Result *Result
	Err    error
}

// RunMany executes every spec concurrently, each against its own Engine
// and Portfolio, sharing one ScoreTable/Top-K Index built once for the
// whole batch (§5: parallel engines over disjoint portfolios reading an
// immutable shared index). One run's error does not cancel the others.
func RunMany(ctx context.Context, specs []RunSpec, table *scoretable.ScoreTable, index *topk.Index, store barstore.Store, metrics *runmetrics.RunMetrics, logger zerolog.Logger) []RunOutcome {
	outcomes := make([]RunOutcome, len(specs))
	var g errgroup.Group

	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			adapter := signal.New(table, index, spec.SignalCfg, logger.With().Str("run", spec.Name).Logger())
			engine := NewEngine(spec.Config, table, index, adapter, store, metrics, logger.With().Str("run", spec.Name).Logger())
			result, err := engine.Run(ctx, spec.Instruments)
			outcomes[i] = RunOutcome{Name: spec.Name, Result: result, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
