package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/internal/barstore"
	"github.com/bikeshrana/ashare-backtest-go/internal/runmetrics"
	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// ParameterSet is one point in the grid: a named assignment of signal
// strategy parameters under test.
type ParameterSet map[string]float64

// ParameterRange lists the values to sweep for one named parameter.
// Recognized names: buy_threshold, sell_threshold, percentile,
// strength_band_unit, max_position_pct.
type ParameterRange struct {
	Name   string
	Values []float64
}

// OptimizationConfig configures a grid search over signal.Config and
// Config parameters, holding everything else (date range, instrument
// universe, cost model) fixed at BacktestConfig/SignalConfig's values.
type OptimizationConfig struct {
	BacktestConfig *Config
	SignalConfig   *signal.Config

	ParameterRanges []ParameterRange

	// OptimizationMetric: one of total_return, sharpe, profit_factor, win_rate.
	OptimizationMetric string

	Workers         int
	MaxCombinations int
}

// OptimizationResult holds the outcome of one grid point.
type OptimizationResult struct {
	Parameters  ParameterSet
	Result      *Result
	MetricValue float64
	Rank        int
}

// Optimizer performs grid-search parameter optimization by running an
// independent Engine per candidate ParameterSet.
type Optimizer struct {
	config  *OptimizationConfig
	table   *scoretable.ScoreTable
	index   *topk.Index
	store   barstore.Store
	metrics *runmetrics.RunMetrics
	logger  zerolog.Logger
}

func NewOptimizer(config *OptimizationConfig, table *scoretable.ScoreTable, index *topk.Index, store barstore.Store, metrics *runmetrics.RunMetrics, logger zerolog.Logger) *Optimizer {
	return &Optimizer{config: config, table: table, index: index, store: store, metrics: metrics, logger: logger}
}

// Optimize runs the grid search over instruments, bounded by
// config.Workers concurrent engines and config.MaxCombinations total
// candidates (0 = unbounded).
func (o *Optimizer) Optimize(ctx context.Context, instruments []types.InstrumentCode) ([]*OptimizationResult, error) {
	o.logger.Info().Msg("starting parameter optimization")

	combinations := o.generateCombinations()
	total := len(combinations)
	if o.config.MaxCombinations > 0 && total > o.config.MaxCombinations {
		o.logger.Warn().Int("total", total).Int("max", o.config.MaxCombinations).Msg("limiting combinations to max")
		combinations = combinations[:o.config.MaxCombinations]
		total = o.config.MaxCombinations
	}

	o.logger.Info().Int("total_combinations", total).Int("workers", o.config.Workers).
		Str("metric", o.config.OptimizationMetric).Msg("grid search configuration")

	results := make([]*OptimizationResult, total)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, maxInt(o.config.Workers, 1))
	startTime := time.Now()

	for i, params := range combinations {
		wg.Add(1)
		go func(index int, paramSet ParameterSet) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			results[index] = o.runOne(ctx, instruments, paramSet, index, total)
		}(i, params)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].MetricValue > results[j].MetricValue
	})
	for i, r := range results {
		r.Rank = i + 1
	}

	o.logger.Info().Int("combinations_tested", total).Str("duration", time.Since(startTime).String()).
		Float64("best_metric", results[0].MetricValue).Msg("optimization complete")

	return results, nil
}

func (o *Optimizer) runOne(ctx context.Context, instruments []types.InstrumentCode, params ParameterSet, index, total int) *OptimizationResult {
	logger := o.logger.With().Int("combination", index+1).Int("total", total).Logger()
	logger.Debug().Interface("params", params).Msg("testing parameter combination")

	sigCfg := *o.config.SignalConfig
	backCfg := *o.config.BacktestConfig
	applyParams(&sigCfg, &backCfg, params)

	if err := sigCfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid signal config for this combination")
		return &OptimizationResult{Parameters: params, MetricValue: negInf}
	}
	if err := backCfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid backtest config for this combination")
		return &OptimizationResult{Parameters: params, MetricValue: negInf}
	}

	adapter := signal.New(o.table, o.index, sigCfg, logger)
	engine := NewEngine(backCfg, o.table, o.index, adapter, o.store, o.metrics, logger)
	result, err := engine.Run(ctx, instruments)
	if err != nil && (result == nil) {
		logger.Error().Err(err).Msg("backtest failed")
		return &OptimizationResult{Parameters: params, MetricValue: negInf}
	}

	metricValue := o.extractMetric(result)
	logger.Debug().Float64("metric_value", metricValue).Int("trades", len(result.Trades)).Msg("backtest completed")

	return &OptimizationResult{Parameters: params, Result: result, MetricValue: metricValue}
}

// negInf penalizes parameter combinations that fail validation or
// produce no usable result, so they sort to the bottom of the ranking.
const negInf = -1e18

func applyParams(sigCfg *signal.Config, backCfg *Config, params ParameterSet) {
	for name, value := range params {
		switch name {
		case "buy_threshold":
			sigCfg.BuyThreshold = value
		case "sell_threshold":
			sigCfg.SellThreshold = value
		case "percentile":
			sigCfg.Percentile = value
		case "strength_band_unit":
			sigCfg.StrengthBandUnit = value
		case "max_position_pct":
			backCfg.MaxPositionPct = decimal.NewFromFloat(value)
		}
	}
}

func (o *Optimizer) extractMetric(result *Result) float64 {
	switch o.config.OptimizationMetric {
	case "total_return":
		return result.Metrics.TotalReturn.InexactFloat64()
	case "profit_factor":
		return result.Metrics.ProfitFactor
	case "win_rate":
		return result.Metrics.WinRate
	case "sharpe", "":
		return result.Metrics.Sharpe
	default:
		o.logger.Warn().Str("metric", o.config.OptimizationMetric).Msg("unknown metric, using sharpe")
		return result.Metrics.Sharpe
	}
}

func (o *Optimizer) generateCombinations() []ParameterSet {
	if len(o.config.ParameterRanges) == 0 {
		return []ParameterSet{{}}
	}
	var combinations []ParameterSet
	o.generateCombinationsRecursive(0, ParameterSet{}, &combinations)
	return combinations
}

func (o *Optimizer) generateCombinationsRecursive(depth int, current ParameterSet, results *[]ParameterSet) {
	if depth == len(o.config.ParameterRanges) {
		combo := make(ParameterSet, len(current))
		for k, v := range current {
			combo[k] = v
		}
		*results = append(*results, combo)
		return
	}
	r := o.config.ParameterRanges[depth]
	for _, value := range r.Values {
		current[r.Name] = value
		o.generateCombinationsRecursive(depth+1, current, results)
		delete(current, r.Name)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// PrintTopResults formats the top N optimization results for console display.
func PrintTopResults(results []*OptimizationResult, topN int) string {
	if topN > len(results) {
		topN = len(results)
	}

	out := "\n═══════════════════════════════════════════════════════════════════════════════\n"
	out += fmt.Sprintf("                    OPTIMIZATION RESULTS (Top %d)\n", topN)
	out += "═══════════════════════════════════════════════════════════════════════════════\n\n"

	for i := 0; i < topN; i++ {
		r := results[i]
		out += fmt.Sprintf("Rank #%d\n", r.Rank)
		out += "─────────────────────────────────────────────────────────────────────────────\n"
		out += "Parameters:\n"

		keys := make([]string, 0, len(r.Parameters))
		for k := range r.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out += fmt.Sprintf("  %s: %v\n", k, r.Parameters[k])
		}

		out += "\nPerformance:\n"
		out += fmt.Sprintf("  Metric Value:  %.4f\n", r.MetricValue)
		if r.Result != nil {
			m := r.Result.Metrics
			out += fmt.Sprintf("  Total Return:  %s\n", formatPct(m.TotalReturn.InexactFloat64()))
			out += fmt.Sprintf("  Sharpe Ratio:  %s\n", formatRatio(m.Sharpe))
			out += fmt.Sprintf("  Max Drawdown:  %s\n", formatPct(m.MaxDrawdown.InexactFloat64()))
			out += fmt.Sprintf("  Profit Factor: %s\n", formatRatio(m.ProfitFactor))
			out += fmt.Sprintf("  Win Rate:      %s\n", formatRatio(m.WinRate))
			out += fmt.Sprintf("  Total Trades:  %d\n", len(r.Result.Trades))
		}
		out += "\n"
	}

	return out
}

// GenerateParameterRangeFloat creates an evenly spaced parameter range.
// Each value is computed as start+i*step (not by repeated addition) and
// end is included within a small tolerance, so float rounding does not
// drop the final point.
func GenerateParameterRangeFloat(name string, start, end, step float64) ParameterRange {
	var values []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > end+step*1e-9 {
			break
		}
		values = append(values, v)
	}
	return ParameterRange{Name: name, Values: values}
}

// GenerateParameterRangeValues creates a parameter range from explicit values.
func GenerateParameterRangeValues(name string, values ...float64) ParameterRange {
	return ParameterRange{Name: name, Values: values}
}
