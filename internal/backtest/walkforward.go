package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bikeshrana/ashare-backtest-go/internal/barstore"
	"github.com/bikeshrana/ashare-backtest-go/internal/runmetrics"
	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// WalkForwardConfig configures rolling (or anchored) in-sample
// optimization followed by out-of-sample testing.
type WalkForwardConfig struct {
	BacktestConfig *Config
	SignalConfig   *signal.Config

	ParameterRanges    []ParameterRange
	OptimizationMetric string

	InSampleDays    int
	OutOfSampleDays int
	StepDays        int

	// Anchored: in-sample window always starts from DateRange.Start and
	// only its end advances; otherwise both ends of the window roll.
	Anchored bool

	Workers int
}

// WalkForwardPeriod is one in-sample/out-of-sample cycle.
type WalkForwardPeriod struct {
	PeriodNumber int

	InSampleStart time.Time
	InSampleEnd   time.Time

	OutOfSampleStart time.Time
	OutOfSampleEnd   time.Time

	BestParameters ParameterSet
	InSampleResult *Result

	OutOfSampleResult *Result

	InSampleMetric    float64
	OutOfSampleMetric float64
	PerformanceRatio  float64 // out-of-sample / in-sample
}

// WalkForwardResult aggregates every period's outcome.
type WalkForwardResult struct {
	Config  *WalkForwardConfig
	Periods []WalkForwardPeriod

	TotalPeriods           int
	AvgInSampleMetric      float64
	AvgOutOfSampleMetric   float64
	AvgPerformanceRatio    float64
	PeriodsWithPositiveOOS int

	CombinedOOSReturn  float64
	CombinedOOSTrades  int
	CombinedOOSWinRate float64
	CombinedOOSSharpe  float64
	CombinedOOSMaxDD   float64

	TotalDuration time.Duration
}

// WalkForwardAnalyzer runs walk-forward analysis over one instrument
// universe, reusing a shared ScoreTable/Index across every period.
type WalkForwardAnalyzer struct {
	config  *WalkForwardConfig
	table   *scoretable.ScoreTable
	index   *topk.Index
	store   barstore.Store
	metrics *runmetrics.RunMetrics
	logger  zerolog.Logger
}

func NewWalkForwardAnalyzer(config *WalkForwardConfig, table *scoretable.ScoreTable, index *topk.Index, store barstore.Store, metrics *runmetrics.RunMetrics, logger zerolog.Logger) *WalkForwardAnalyzer {
	return &WalkForwardAnalyzer{config: config, table: table, index: index, store: store, metrics: metrics, logger: logger}
}

func (wfa *WalkForwardAnalyzer) Analyze(ctx context.Context, instruments []types.InstrumentCode) (*WalkForwardResult, error) {
	startTime := time.Now()
	wfa.logger.Info().Msg("starting walk-forward analysis")

	periods := wfa.generatePeriods()
	wfa.logger.Info().Int("total_periods", len(periods)).Int("in_sample_days", wfa.config.InSampleDays).
		Int("out_of_sample_days", wfa.config.OutOfSampleDays).Bool("anchored", wfa.config.Anchored).
		Msg("walk-forward configuration")

	results := make([]WalkForwardPeriod, len(periods))
	for i, period := range periods {
		wfa.logger.Info().Int("period", period.PeriodNumber).Int("total", len(periods)).
			Time("in_sample_start", period.InSampleStart).Time("out_sample_end", period.OutOfSampleEnd).
			Msg("processing walk-forward period")

		result, err := wfa.runPeriod(ctx, instruments, period)
		if err != nil {
			wfa.logger.Error().Err(err).Int("period", period.PeriodNumber).Msg("period failed")
			continue
		}
		results[i] = *result

		wfa.logger.Info().Int("period", result.PeriodNumber).Float64("in_sample_metric", result.InSampleMetric).
			Float64("out_sample_metric", result.OutOfSampleMetric).Float64("ratio", result.PerformanceRatio).
			Msg("period completed")
	}

	finalResult := wfa.calculateAggregateStats(results, time.Since(startTime))
	wfa.logger.Info().Int("periods", finalResult.TotalPeriods).Float64("avg_oos_metric", finalResult.AvgOutOfSampleMetric).
		Float64("avg_ratio", finalResult.AvgPerformanceRatio).Float64("combined_return", finalResult.CombinedOOSReturn).
		Msg("walk-forward analysis complete")

	return finalResult, nil
}

func (wfa *WalkForwardAnalyzer) generatePeriods() []WalkForwardPeriod {
	var periods []WalkForwardPeriod

	startDate := wfa.config.BacktestConfig.DateRange.Start
	endDate := wfa.config.BacktestConfig.DateRange.End

	periodNumber := 1
	currentStart := startDate
	currentEnd := startDate.AddDate(0, 0, wfa.config.InSampleDays)

	for {
		inSampleStart := currentStart
		inSampleEnd := currentEnd

		outOfSampleStart := inSampleEnd
		outOfSampleEnd := outOfSampleStart.AddDate(0, 0, wfa.config.OutOfSampleDays)

		if outOfSampleEnd.After(endDate) {
			break
		}

		periods = append(periods, WalkForwardPeriod{
			PeriodNumber:     periodNumber,
			InSampleStart:    inSampleStart,
			InSampleEnd:      inSampleEnd,
			OutOfSampleStart: outOfSampleStart,
			OutOfSampleEnd:   outOfSampleEnd,
		})
		periodNumber++

		if !wfa.config.Anchored {
			currentStart = currentStart.AddDate(0, 0, wfa.config.StepDays)
		}
		currentEnd = currentEnd.AddDate(0, 0, wfa.config.StepDays)
	}

	return periods
}

func (wfa *WalkForwardAnalyzer) runPeriod(ctx context.Context, instruments []types.InstrumentCode, period WalkForwardPeriod) (*WalkForwardPeriod, error) {
	inSampleConfig := *wfa.config.BacktestConfig
	inSampleConfig.DateRange = types.DateRange{Start: period.InSampleStart, End: period.InSampleEnd}

	optimizer := NewOptimizer(&OptimizationConfig{
		BacktestConfig:     &inSampleConfig,
		SignalConfig:       wfa.config.SignalConfig,
		ParameterRanges:    wfa.config.ParameterRanges,
		OptimizationMetric: wfa.config.OptimizationMetric,
		Workers:            wfa.config.Workers,
	}, wfa.table, wfa.index, wfa.store, wfa.metrics, wfa.logger)

	optimResults, err := optimizer.Optimize(ctx, instruments)
	if err != nil {
		return nil, fmt.Errorf("in-sample optimization failed: %w", err)
	}
	if len(optimResults) == 0 {
		return nil, fmt.Errorf("no optimization results")
	}

	best := optimResults[0]
	period.BestParameters = best.Parameters
	period.InSampleResult = best.Result
	period.InSampleMetric = best.MetricValue

	wfa.logger.Info().Int("period", period.PeriodNumber).Interface("best_params", best.Parameters).
		Float64("in_sample_metric", best.MetricValue).Msg("in-sample optimization complete")

	outOfSampleConfig := *wfa.config.BacktestConfig
	outOfSampleConfig.DateRange = types.DateRange{Start: period.OutOfSampleStart, End: period.OutOfSampleEnd}

	sigCfg := *wfa.config.SignalConfig
	applyParams(&sigCfg, &outOfSampleConfig, best.Parameters)

	adapter := signal.New(wfa.table, wfa.index, sigCfg, wfa.logger)
	engine := NewEngine(outOfSampleConfig, wfa.table, wfa.index, adapter, wfa.store, wfa.metrics, wfa.logger)
	oosResult, err := engine.Run(ctx, instruments)
	if err != nil && oosResult == nil {
		return nil, fmt.Errorf("out-of-sample test failed: %w", err)
	}

	period.OutOfSampleResult = oosResult
	period.OutOfSampleMetric = wfa.extractMetric(oosResult)
	if period.InSampleMetric != 0 {
		period.PerformanceRatio = period.OutOfSampleMetric / period.InSampleMetric
	}

	return &period, nil
}

func (wfa *WalkForwardAnalyzer) extractMetric(result *Result) float64 {
	switch wfa.config.OptimizationMetric {
	case "total_return":
		return result.Metrics.TotalReturn.InexactFloat64()
	case "profit_factor":
		return result.Metrics.ProfitFactor
	case "win_rate":
		return result.Metrics.WinRate
	default:
		return result.Metrics.Sharpe
	}
}

func (wfa *WalkForwardAnalyzer) calculateAggregateStats(periods []WalkForwardPeriod, duration time.Duration) *WalkForwardResult {
	result := &WalkForwardResult{Config: wfa.config, Periods: periods, TotalPeriods: len(periods), TotalDuration: duration}
	if len(periods) == 0 {
		return result
	}

	var sumISMetric, sumOOSMetric, sumRatio float64
	var totalReturn float64
	var totalTrades, totalWins int
	var maxDD float64
	var periodsWithPositiveOOS int
	var sumSharpe float64
	var validPeriods int

	for _, period := range periods {
		sumISMetric += period.InSampleMetric
		sumOOSMetric += period.OutOfSampleMetric
		sumRatio += period.PerformanceRatio

		if period.OutOfSampleResult == nil {
			continue
		}
		oos := period.OutOfSampleResult
		retPct := oos.Metrics.TotalReturn.InexactFloat64()
		totalReturn += retPct
		totalTrades += len(oos.Trades)
		for _, t := range oos.Trades {
			if t.IsWinning() {
				totalWins++
			}
		}
		if dd := oos.Metrics.MaxDrawdown.InexactFloat64(); dd > maxDD {
			maxDD = dd
		}
		if retPct > 0 {
			periodsWithPositiveOOS++
		}
		sumSharpe += oos.Metrics.Sharpe
		validPeriods++
	}

	n := float64(len(periods))
	result.AvgInSampleMetric = sumISMetric / n
	result.AvgOutOfSampleMetric = sumOOSMetric / n
	result.AvgPerformanceRatio = sumRatio / n
	result.PeriodsWithPositiveOOS = periodsWithPositiveOOS

	result.CombinedOOSReturn = totalReturn
	result.CombinedOOSTrades = totalTrades
	if totalTrades > 0 {
		result.CombinedOOSWinRate = float64(totalWins) / float64(totalTrades) * 100
	}
	result.CombinedOOSMaxDD = maxDD
	if validPeriods > 0 {
		result.CombinedOOSSharpe = sumSharpe / float64(validPeriods)
	}

	return result
}

// PrintWalkForwardResults formats walk-forward results for console display.
func PrintWalkForwardResults(result *WalkForwardResult) string {
	out := "\n"
	out += "═══════════════════════════════════════════════════════════════════════════════\n"
	out += "                      WALK-FORWARD ANALYSIS RESULTS\n"
	out += "═══════════════════════════════════════════════════════════════════════════════\n\n"

	out += "CONFIGURATION\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Total Periods:        %d\n", result.TotalPeriods)
	out += fmt.Sprintf("In-Sample Days:       %d\n", result.Config.InSampleDays)
	out += fmt.Sprintf("Out-of-Sample Days:   %d\n", result.Config.OutOfSampleDays)
	out += fmt.Sprintf("Step Days:            %d\n", result.Config.StepDays)
	out += fmt.Sprintf("Anchored:             %t\n", result.Config.Anchored)
	out += fmt.Sprintf("Optimization Metric:  %s\n", result.Config.OptimizationMetric)
	out += "\n"

	out += "AGGREGATE RESULTS\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Avg In-Sample Metric:     %.4f\n", result.AvgInSampleMetric)
	out += fmt.Sprintf("Avg Out-of-Sample Metric: %.4f\n", result.AvgOutOfSampleMetric)
	out += fmt.Sprintf("Avg Performance Ratio:    %.4f (OOS/IS)\n", result.AvgPerformanceRatio)
	if result.TotalPeriods > 0 {
		out += fmt.Sprintf("Periods with Positive OOS: %d / %d (%.1f%%)\n",
			result.PeriodsWithPositiveOOS, result.TotalPeriods,
			float64(result.PeriodsWithPositiveOOS)/float64(result.TotalPeriods)*100)
	}
	out += "\n"

	out += "COMBINED OUT-OF-SAMPLE PERFORMANCE\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Total Return:         %.2f%%\n", result.CombinedOOSReturn*100)
	out += fmt.Sprintf("Avg Sharpe Ratio:     %.2f\n", result.CombinedOOSSharpe)
	out += fmt.Sprintf("Max Drawdown:         %.2f%%\n", result.CombinedOOSMaxDD*100)
	out += fmt.Sprintf("Total Trades:         %d\n", result.CombinedOOSTrades)
	out += fmt.Sprintf("Win Rate:             %.1f%%\n", result.CombinedOOSWinRate)
	out += "\n"

	out += "PERIOD DETAILS\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("%-6s %-12s %-12s %-12s %-12s %-8s\n", "Period", "IS Start", "IS End", "OOS Start", "OOS End", "Ratio")
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	for _, period := range result.Periods {
		out += fmt.Sprintf("%-6d %-12s %-12s %-12s %-12s %.4f\n",
			period.PeriodNumber,
			period.InSampleStart.Format("2006-01-02"), period.InSampleEnd.Format("2006-01-02"),
			period.OutOfSampleStart.Format("2006-01-02"), period.OutOfSampleEnd.Format("2006-01-02"),
			period.PerformanceRatio)
	}

	out += "\n"
	out += fmt.Sprintf("Analysis completed in %s\n", result.TotalDuration.String())
	out += "═══════════════════════════════════════════════════════════════════════════════\n"

	return out
}
