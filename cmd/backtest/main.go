package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
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

// Exit codes per the CLI surface: 0 success, 1 config error, 2 data
// error, 3 engine fatal.
const (
	exitOK          = 0
	exitConfigError = 1
	exitDataError   = 2
	exitEngineFatal = 3
)

// barFetchRatePerSecond bounds how often the engine hits the bar store,
// so a large instrument universe can't turn a slow disk or throttled
// upstream into a tight retry storm.
const barFetchRatePerSecond = 50.0

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: backtest <workflow|backtest> [flags]")
		os.Exit(exitConfigError)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	logger := log.With().Str("component", "backtest-cli").Logger()

	switch os.Args[1] {
	case "workflow":
		os.Exit(runWorkflow(logger, os.Args[2:]))
	case "backtest":
		os.Exit(runBacktest(logger, os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q: want workflow or backtest\n", os.Args[1])
		os.Exit(exitConfigError)
	}
}

// runWorkflow runs the full pipeline: load score table, build the Top-K
// index, resolve the instrument universe (by named index or explicit
// list), and run the backtest engine end to end.
func runWorkflow(logger zerolog.Logger, args []string) int {
	fs := flag.NewFlagSet("workflow", flag.ExitOnError)
	indexName := fs.String("index", "", "named index whose membership defines the instrument universe")
	stocksFlag := fs.String("stocks", "", "comma-separated instrument codes (alternative to --index)")
	maxStocks := fs.Int("max-stocks", 0, "cap on the instrument universe size (0 = unbounded)")
	fromDate := fs.String("from", "", "start date YYYY-MM-DD (required)")
	toDate := fs.String("to", "", "end date YYYY-MM-DD (required)")
	predictions := fs.String("predictions", "", "path to the score artifact (required)")
	configPath := fs.String("config", "", "optional YAML config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("loading configuration")
		return exitConfigError
	}

	if *predictions == "" || *fromDate == "" || *toDate == "" {
		logger.Error().Msg("--predictions, --from, and --to are required")
		return exitConfigError
	}

	dateRange, err := parseDateRange(*fromDate, *toDate)
	if err != nil {
		logger.Error().Err(err).Msg("parsing date range")
		return exitConfigError
	}

	parsedBacktest, err := cfg.Backtest.Parse(dateRange)
	if err != nil {
		logger.Error().Err(err).Msg("parsing backtest configuration")
		return exitConfigError
	}
	sigCfg, err := cfg.Signal.ToSignalConfig()
	if err != nil {
		logger.Error().Err(err).Msg("parsing signal configuration")
		return exitConfigError
	}

	table, err := scoretable.Load(*predictions)
	if err != nil {
		logger.Error().Err(err).Msg("loading score artifact")
		return exitDataError
	}

	index := topk.Build(table, parsedBacktest.TopK)

	diskStore, err := barstore.NewDiskStore(cfg.Paths.DataPath, []string{"sh", "sz", "bj"})
	if err != nil {
		logger.Error().Err(err).Msg("opening bar store")
		return exitDataError
	}
	store := barstore.NewRateLimitedStore(diskStore, barFetchRatePerSecond, parsedBacktest.BarFetchDeadline, parsedBacktest.BarFetchRetryBudget, logger)

	instruments, err := resolveInstruments(context.Background(), store, table, *indexName, *stocksFlag, *maxStocks)
	if err != nil {
		logger.Error().Err(err).Msg("resolving instrument universe")
		return exitDataError
	}

	backCfg := toBacktestConfig(parsedBacktest)
	if err := backCfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid backtest configuration")
		return exitConfigError
	}

	metrics := runmetrics.NewRunMetrics("backtest")
	adapter := signal.New(table, index, sigCfg, logger)
	engine := backtest.NewEngine(backCfg, table, index, adapter, store, metrics, logger)

	result, err := engine.Run(context.Background(), instruments)
	if result == nil {
		logger.Error().Err(err).Msg("backtest run failed")
		return exitEngineFatal
	}
	if err != nil {
		logger.Warn().Err(err).Msg("run ended early")
	}

	return finishRun(logger, cfg, result)
}

// runBacktest runs the backtest-only surface, skipping universe
// discovery: --predictions already names the instruments to trade via
// the score table's own coverage.
func runBacktest(logger zerolog.Logger, args []string) int {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	predictions := fs.String("predictions", "", "path to the score artifact (required)")
	fromDate := fs.String("from", "", "start date YYYY-MM-DD (required)")
	toDate := fs.String("to", "", "end date YYYY-MM-DD (required)")
	initialCapital := fs.String("initial-capital", "", "override initial capital")
	topK := fs.Int("top-k", 0, "override top-k (0 = use config default)")
	rebalancePeriod := fs.String("rebalance", "", "override rebalance period: DAY|WEEK|MONTH")
	configPath := fs.String("config", "", "optional YAML config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("loading configuration")
		return exitConfigError
	}

	if *predictions == "" || *fromDate == "" || *toDate == "" {
		logger.Error().Msg("--predictions, --from, and --to are required")
		return exitConfigError
	}
	if *initialCapital != "" {
		cfg.Backtest.InitialCapital = *initialCapital
	}
	if *topK > 0 {
		cfg.Backtest.TopK = *topK
	}
	if *rebalancePeriod != "" {
		cfg.Backtest.RebalancePeriod = *rebalancePeriod
	}

	dateRange, err := parseDateRange(*fromDate, *toDate)
	if err != nil {
		logger.Error().Err(err).Msg("parsing date range")
		return exitConfigError
	}

	parsedBacktest, err := cfg.Backtest.Parse(dateRange)
	if err != nil {
		logger.Error().Err(err).Msg("parsing backtest configuration")
		return exitConfigError
	}
	sigCfg, err := cfg.Signal.ToSignalConfig()
	if err != nil {
		logger.Error().Err(err).Msg("parsing signal configuration")
		return exitConfigError
	}

	table, err := scoretable.Load(*predictions)
	if err != nil {
		logger.Error().Err(err).Msg("loading score artifact")
		return exitDataError
	}

	index := topk.Build(table, parsedBacktest.TopK)
	instruments := table.Instruments()
	if len(instruments) == 0 {
		logger.Error().Msg("score artifact contains no instruments")
		return exitDataError
	}

	diskStore, err := barstore.NewDiskStore(cfg.Paths.DataPath, []string{"sh", "sz", "bj"})
	if err != nil {
		logger.Error().Err(err).Msg("opening bar store")
		return exitDataError
	}
	store := barstore.NewRateLimitedStore(diskStore, barFetchRatePerSecond, parsedBacktest.BarFetchDeadline, parsedBacktest.BarFetchRetryBudget, logger)

	backCfg := toBacktestConfig(parsedBacktest)
	if err := backCfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid backtest configuration")
		return exitConfigError
	}

	metrics := runmetrics.NewRunMetrics("backtest")
	adapter := signal.New(table, index, sigCfg, logger)
	engine := backtest.NewEngine(backCfg, table, index, adapter, store, metrics, logger)

	result, err := engine.Run(context.Background(), instruments)
	if result == nil {
		logger.Error().Err(err).Msg("backtest run failed")
		return exitEngineFatal
	}
	if err != nil {
		logger.Warn().Err(err).Msg("run ended early")
	}

	return finishRun(logger, cfg, result)
}

func finishRun(logger zerolog.Logger, cfg *config.Config, result *backtest.Result) int {
	reportGen := backtest.NewReportGenerator(result)
	fmt.Println(reportGen.GenerateConsoleReport())

	if err := reportGen.SaveToFile(cfg.Paths.ResultPath); err != nil {
		logger.Error().Err(err).Msg("saving report")
	}

	encoded, err := backtest.EncodeResult(result)
	if err != nil {
		logger.Error().Err(err).Msg("encoding result artifact")
		return exitEngineFatal
	}
	artifactPath := cfg.Paths.ResultPath + "/result.btr"
	if err := os.MkdirAll(cfg.Paths.ResultPath, 0755); err != nil {
		logger.Error().Err(err).Msg("creating result directory")
		return exitEngineFatal
	}
	if err := os.WriteFile(artifactPath, encoded, 0644); err != nil {
		logger.Error().Err(err).Msg("writing result artifact")
		return exitEngineFatal
	}

	logger.Info().
		Str("total_return", result.Metrics.TotalReturn.String()).
		Str("sharpe", fmt.Sprintf("%.2f", result.Metrics.Sharpe)).
		Int("trades", len(result.Trades)).
		Bool("canceled", result.Canceled).
		Msg("run complete")

	return exitOK
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

func resolveInstruments(ctx context.Context, store barstore.Store, table *scoretable.ScoreTable, indexName, stocksFlag string, maxStocks int) ([]types.InstrumentCode, error) {
	var instruments []types.InstrumentCode

	switch {
	case indexName != "":
		members, err := store.Members(ctx, indexName)
		if err != nil {
			return nil, fmt.Errorf("fetching members of %s: %w", indexName, err)
		}
		instruments = members
	case stocksFlag != "":
		for _, raw := range strings.Split(stocksFlag, ",") {
			code, err := types.NewInstrumentCode(strings.TrimSpace(raw))
			if err != nil {
				return nil, err
			}
			instruments = append(instruments, code)
		}
	default:
		instruments = table.Instruments()
	}

	if len(instruments) == 0 {
		return nil, fmt.Errorf("resolved instrument universe is empty")
	}
	if maxStocks > 0 && len(instruments) > maxStocks {
		instruments = instruments[:maxStocks]
	}
	return instruments, nil
}
