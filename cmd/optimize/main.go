package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bikeshrana/ashare-backtest-go/internal/backtest"
	"github.com/bikeshrana/ashare-backtest-go/internal/barstore"
	config "github.com/bikeshrana/ashare-backtest-go/internal/runconfig"
	"github.com/bikeshrana/ashare-backtest-go/internal/runmetrics"
	"github.com/bikeshrana/ashare-backtest-go/internal/scoretable"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/internal/topk"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// barFetchRatePerSecond bounds how often the engine hits the bar store,
// so a large instrument universe can't turn a slow disk or throttled
// upstream into a tight retry storm.
const barFetchRatePerSecond = 50.0

func main() {
	mode := flag.String("mode", "grid", "optimization mode: grid, walkforward, montecarlo")
	predictions := flag.String("predictions", "", "path to the score artifact (required)")
	fromDate := flag.String("from", "", "start date YYYY-MM-DD (required)")
	toDate := flag.String("to", "", "end date YYYY-MM-DD (required)")
	workers := flag.Int("workers", 4, "number of parallel workers")
	metric := flag.String("metric", "sharpe", "optimization metric: sharpe, total_return, profit_factor, win_rate")
	outputDir := flag.String("output", "./optimization_results", "output directory")
	maxCombinations := flag.Int("max-combinations", 0, "cap on parameter combinations (0 = unbounded)")
	inSampleDays := flag.Int("in-sample-days", 120, "walk-forward in-sample window length, in calendar days")
	outOfSampleDays := flag.Int("out-of-sample-days", 30, "walk-forward out-of-sample window length, in calendar days")
	stepDays := flag.Int("step-days", 30, "walk-forward roll-forward step, in calendar days")
	anchored := flag.Bool("anchored", false, "walk-forward: grow the in-sample window instead of rolling it")
	simulations := flag.Int("simulations", 1000, "monte carlo: number of bootstrap simulations")
	configPath := flag.String("config", "", "optional YAML config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", "optimize-cli").Logger()

	if *predictions == "" || *fromDate == "" || *toDate == "" {
		logger.Fatal().Msg("--predictions, --from, and --to are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading configuration")
	}

	dateRange, err := parseDateRange(*fromDate, *toDate)
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing date range")
	}

	parsedBacktest, err := cfg.Backtest.Parse(dateRange)
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing backtest configuration")
	}
	sigCfg, err := cfg.Signal.ToSignalConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("parsing signal configuration")
	}

	table, err := scoretable.Load(*predictions)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading score artifact")
	}
	instruments := table.Instruments()
	if len(instruments) == 0 {
		logger.Fatal().Msg("score artifact contains no instruments")
	}

	diskStore, err := barstore.NewDiskStore(cfg.Paths.DataPath, []string{"sh", "sz", "bj"})
	if err != nil {
		logger.Fatal().Err(err).Msg("opening bar store")
	}
	store := barstore.NewRateLimitedStore(diskStore, barFetchRatePerSecond, parsedBacktest.BarFetchDeadline, parsedBacktest.BarFetchRetryBudget, logger)

	backCfg := toBacktestConfig(parsedBacktest)
	if err := backCfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid backtest configuration")
	}

	paramRanges := defaultParameterRanges(sigCfg.Strategy)
	ctx := context.Background()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("creating output directory")
	}

	switch *mode {
	case "grid":
		runGridSearch(ctx, &backCfg, &sigCfg, table, store, paramRanges, *workers, *metric, *maxCombinations, *outputDir, logger)
	case "walkforward":
		runWalkForward(ctx, &backCfg, &sigCfg, table, store, instruments, paramRanges, *workers, *metric, *inSampleDays, *outOfSampleDays, *stepDays, *anchored, *outputDir, logger)
	case "montecarlo":
		runMonteCarlo(ctx, &backCfg, &sigCfg, table, store, instruments, *simulations, cfg.Paths.RandomSeed, *outputDir, logger)
	default:
		logger.Fatal().Str("mode", *mode).Msg("unknown optimization mode")
	}

	logger.Info().Msg("optimization complete")
}

func runGridSearch(
	ctx context.Context,
	backCfg *backtest.Config,
	sigCfg *signal.Config,
	table *scoretable.ScoreTable,
	store barstore.Store,
	paramRanges []backtest.ParameterRange,
	workers int,
	metric string,
	maxCombinations int,
	outputDir string,
	logger zerolog.Logger,
) {
	logger.Info().Msg("running grid search optimization")

	index := topk.Build(table, backCfg.TopK)
	optConfig := &backtest.OptimizationConfig{
		BacktestConfig:      backCfg,
		SignalConfig:        sigCfg,
		ParameterRanges:     paramRanges,
		OptimizationMetric:  metric,
		Workers:             workers,
		MaxCombinations:     maxCombinations,
	}

	metrics := runmetrics.NewRunMetrics("optimize")
	optimizer := backtest.NewOptimizer(optConfig, table, index, store, metrics, logger)
	results, err := optimizer.Optimize(ctx, table.Instruments())
	if err != nil {
		logger.Fatal().Err(err).Msg("optimization failed")
	}
	if len(results) == 0 {
		logger.Fatal().Msg("optimization produced no results")
	}

	fmt.Println(backtest.PrintTopResults(results, 10))
	saveOptimizationResults(results, outputDir, logger)

	logger.Info().
		Int("total_combinations", len(results)).
		Float64("best_metric", results[0].MetricValue).
		Msg("grid search complete")
}

func runWalkForward(
	ctx context.Context,
	backCfg *backtest.Config,
	sigCfg *signal.Config,
	table *scoretable.ScoreTable,
	store barstore.Store,
	instruments []types.InstrumentCode,
	paramRanges []backtest.ParameterRange,
	workers int,
	metric string,
	inSampleDays, outOfSampleDays, stepDays int,
	anchored bool,
	outputDir string,
	logger zerolog.Logger,
) {
	logger.Info().Msg("running walk-forward analysis")

	wfConfig := &backtest.WalkForwardConfig{
		BacktestConfig:      backCfg,
		SignalConfig:        sigCfg,
		ParameterRanges:     paramRanges,
		OptimizationMetric:  metric,
		InSampleDays:        inSampleDays,
		OutOfSampleDays:     outOfSampleDays,
		StepDays:            stepDays,
		Anchored:            anchored,
		Workers:             workers,
	}

	index := topk.Build(table, backCfg.TopK)
	metrics := runmetrics.NewRunMetrics("optimize")
	analyzer := backtest.NewWalkForwardAnalyzer(wfConfig, table, index, store, metrics, logger)
	result, err := analyzer.Analyze(ctx, instruments)
	if err != nil {
		logger.Fatal().Err(err).Msg("walk-forward analysis failed")
	}

	fmt.Println(backtest.PrintWalkForwardResults(result))

	filename := fmt.Sprintf("%s/walkforward_%s.txt", outputDir, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(filename, []byte(backtest.PrintWalkForwardResults(result)), 0644); err != nil {
		logger.Error().Err(err).Msg("saving walk-forward report")
	}

	logger.Info().
		Int("periods", len(result.Periods)).
		Float64("avg_oos_metric", result.AvgOutOfSampleMetric).
		Msg("walk-forward complete")
}

func runMonteCarlo(
	ctx context.Context,
	backCfg *backtest.Config,
	sigCfg *signal.Config,
	table *scoretable.ScoreTable,
	store barstore.Store,
	instruments []types.InstrumentCode,
	simulations int,
	seed int64,
	outputDir string,
	logger zerolog.Logger,
) {
	logger.Info().Msg("running monte carlo simulation")

	index := topk.Build(table, backCfg.TopK)
	metrics := runmetrics.NewRunMetrics("optimize")
	adapter := signal.New(table, index, *sigCfg, logger)
	engine := backtest.NewEngine(*backCfg, table, index, adapter, store, metrics, logger)

	backtestResult, err := engine.Run(ctx, instruments)
	if backtestResult == nil {
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	mcConfig := &backtest.MonteCarloConfig{
		Simulations:     simulations,
		Seed:            seed,
		ConfidenceLevel: 0.95,
	}
	simulator := backtest.NewMonteCarloSimulator(mcConfig)
	result := simulator.Simulate(backtestResult)

	fmt.Println(backtest.PrintMonteCarloResults(result))

	if err := backtest.ExportAllVisualizationData(backtestResult, outputDir); err != nil {
		logger.Error().Err(err).Msg("exporting visualization data")
	} else {
		logger.Info().Str("directory", outputDir).Msg("visualization data exported")
	}

	if err := backtest.GeneratePythonPlotScript(outputDir); err != nil {
		logger.Error().Err(err).Msg("generating plot script")
	} else {
		logger.Info().Msg("python plot script generated (plot_backtest.py)")
	}

	logger.Info().
		Int("simulations", result.Config.Simulations).
		Float64("probability_of_profit", result.ProbabilityOfProfit).
		Msg("monte carlo complete")
}

// defaultParameterRanges gives each strategy family a modest sweep
// space over its own tunables; threshold/percentile strategies also
// sweep max_position_pct since it interacts directly with per-name
// sizing under those strategies.
func defaultParameterRanges(strategy signal.Strategy) []backtest.ParameterRange {
	switch strategy {
	case signal.StrategyThreshold:
		return []backtest.ParameterRange{
			backtest.GenerateParameterRangeFloat("buy_threshold", 0.01, 0.05, 0.01),
			backtest.GenerateParameterRangeFloat("sell_threshold", -0.05, -0.01, 0.01),
			backtest.GenerateParameterRangeValues("max_position_pct", 0.1, 0.15, 0.2),
		}
	case signal.StrategyPercentile:
		return []backtest.ParameterRange{
			backtest.GenerateParameterRangeFloat("percentile", 0.7, 0.95, 0.05),
			backtest.GenerateParameterRangeValues("max_position_pct", 0.1, 0.15, 0.2),
		}
	case signal.StrategyTopK:
		return []backtest.ParameterRange{
			backtest.GenerateParameterRangeValues("strength_band_unit", 0.5, 1.0, 1.5, 2.0),
		}
	default:
		return nil
	}
}

func saveOptimizationResults(results []*backtest.OptimizationResult, outputDir string, logger zerolog.Logger) {
	filename := fmt.Sprintf("%s/optimization_results_%s.txt", outputDir, time.Now().Format("20060102_150405"))
	content := backtest.PrintTopResults(results, 20)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		logger.Error().Err(err).Msg("saving results")
	} else {
		logger.Info().Str("file", filename).Msg("results saved")
	}
}

func toBacktestConfig(p config.ParsedBacktestConfig) backtest.Config {
	return backtest.Config{
		DateRange:           p.DateRange,
		InitialCapital:      p.InitialCapital,
		CommissionRate:      p.CommissionRate,
		MinCommission:       p.MinCommission,
		StampTaxRate:        p.StampTaxRate,
		TransferFeeRate:     p.TransferFeeRate,
		SlippageRate:        p.SlippageRate,
		MaxPositionPct:      p.MaxPositionPct,
		LotSize:             p.LotSize,
		TopK:                p.TopK,
		RebalancePolicy:     p.RebalancePolicy,
		RebalancePeriod:     p.RebalancePeriod,
		LiquidateAtEnd:      p.LiquidateAtEnd,
		BarFetchDeadline:    p.BarFetchDeadline,
		BarFetchRetryBudget: p.BarFetchRetryBudget,
	}
}

func parseDateRange(from, to string) (types.DateRange, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return types.DateRange{}, fmt.Errorf("parsing --from: %w", err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return types.DateRange{}, fmt.Errorf("parsing --to: %w", err)
	}
	return types.NewDateRange(start, end)
}
