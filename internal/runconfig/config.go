// Package config loads the environment/file configuration shared by the
// workflow and backtest CLI drivers.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/bikeshrana/ashare-backtest-go/internal/rebalance"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// Config holds every knob a run needs, read from a YAML file (if given)
// with environment variables and CLI flags layered on top.
type Config struct {
	Paths  PathsConfig  `mapstructure:"paths"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Signal SignalConfig `mapstructure:"signal"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PathsConfig names the filesystem locations the run reads/writes.
// DataPath, ResultPath, and RandomSeed map directly to the DATA_PATH,
// RESULT_PATH, and RANDOM_SEED environment variables.
type PathsConfig struct {
	DataPath   string `mapstructure:"data_path"`
	ResultPath string `mapstructure:"result_path"`
	RandomSeed int64  `mapstructure:"random_seed"`
}

// BacktestConfig mirrors backtest.Config in a viper/flag-friendly shape;
// money fields are parsed from decimal strings so config files never
// round-trip through float64.
type BacktestConfig struct {
	InitialCapital string `mapstructure:"initial_capital"`

	CommissionRate  string `mapstructure:"commission_rate"`
	MinCommission   string `mapstructure:"min_commission"`
	StampTaxRate    string `mapstructure:"stamp_tax_rate"`
	TransferFeeRate string `mapstructure:"transfer_fee_rate"`
	SlippageRate    string `mapstructure:"slippage_rate"`

	MaxPositionPct string `mapstructure:"max_position_pct"`
	LotSize        int    `mapstructure:"lot_size"`

	TopK            int    `mapstructure:"top_k"`
	RebalancePolicy string `mapstructure:"rebalance_policy"` // equal_weight | score_weighted
	RebalancePeriod string `mapstructure:"rebalance_period"` // DAY | WEEK | MONTH

	LiquidateAtEnd bool `mapstructure:"liquidate_at_end"`

	BarFetchDeadline    time.Duration `mapstructure:"bar_fetch_deadline"`
	BarFetchRetryBudget int           `mapstructure:"bar_fetch_retry_budget"`
}

// SignalConfig mirrors signal.Config.
type SignalConfig struct {
	Strategy         string  `mapstructure:"strategy"` // threshold | top_k | percentile
	BuyThreshold     float64 `mapstructure:"buy_threshold"`
	SellThreshold    float64 `mapstructure:"sell_threshold"`
	Percentile       float64 `mapstructure:"percentile"`
	StrengthBandUnit float64 `mapstructure:"strength_band_unit"`
}

// LoggingConfig controls the zerolog console/JSON writer.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load reads configuration from an optional YAML file, then applies
// environment-variable and default overrides. configPath may be empty.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if v.IsSet("DATA_PATH") {
		cfg.Paths.DataPath = v.GetString("DATA_PATH")
	}
	if v.IsSet("RESULT_PATH") {
		cfg.Paths.ResultPath = v.GetString("RESULT_PATH")
	}
	if v.IsSet("RANDOM_SEED") {
		cfg.Paths.RandomSeed = v.GetInt64("RANDOM_SEED")
	}

	return &cfg, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("DATA_PATH")
	_ = v.BindEnv("RESULT_PATH")
	_ = v.BindEnv("RANDOM_SEED")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data_path", "./data")
	v.SetDefault("paths.result_path", "./results")
	v.SetDefault("paths.random_seed", 0)

	v.SetDefault("backtest.initial_capital", "1000000")
	v.SetDefault("backtest.commission_rate", "0.0003")
	v.SetDefault("backtest.min_commission", "5")
	v.SetDefault("backtest.stamp_tax_rate", "0.0005")
	v.SetDefault("backtest.transfer_fee_rate", "0.00002")
	v.SetDefault("backtest.slippage_rate", "0.001")
	v.SetDefault("backtest.max_position_pct", "0.2")
	v.SetDefault("backtest.lot_size", 100)
	v.SetDefault("backtest.top_k", 10)
	v.SetDefault("backtest.rebalance_policy", "equal_weight")
	v.SetDefault("backtest.rebalance_period", "MONTH")
	v.SetDefault("backtest.liquidate_at_end", false)
	v.SetDefault("backtest.bar_fetch_deadline", 30*time.Second)
	v.SetDefault("backtest.bar_fetch_retry_budget", 3)

	v.SetDefault("signal.strategy", "top_k")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// ParsedBacktestConfig is what BacktestConfig.Parse returns: the
// decimal-string fields parsed, for the given date range. Returned as
// plain fields (not backtest.Config itself) to avoid an import cycle;
// callers in cmd/ assemble the real backtest.Config from these.
type ParsedBacktestConfig struct {
	DateRange types.DateRange

	InitialCapital decimal.Decimal

	CommissionRate  decimal.Decimal
	MinCommission   decimal.Decimal
	StampTaxRate    decimal.Decimal
	TransferFeeRate decimal.Decimal
	SlippageRate    decimal.Decimal

	MaxPositionPct decimal.Decimal
	LotSize        int

	TopK            int
	RebalancePolicy rebalance.WeightPolicy
	RebalancePeriod types.Period

	LiquidateAtEnd bool

	BarFetchDeadline    time.Duration
	BarFetchRetryBudget int
}

func (c BacktestConfig) Parse(dateRange types.DateRange) (ParsedBacktestConfig, error) {
	initialCapital, err := decimal.NewFromString(c.InitialCapital)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing initial_capital: %w", err)
	}
	commissionRate, err := decimal.NewFromString(c.CommissionRate)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing commission_rate: %w", err)
	}
	minCommission, err := decimal.NewFromString(c.MinCommission)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing min_commission: %w", err)
	}
	stampTaxRate, err := decimal.NewFromString(c.StampTaxRate)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing stamp_tax_rate: %w", err)
	}
	transferFeeRate, err := decimal.NewFromString(c.TransferFeeRate)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing transfer_fee_rate: %w", err)
	}
	slippageRate, err := decimal.NewFromString(c.SlippageRate)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing slippage_rate: %w", err)
	}
	maxPositionPct, err := decimal.NewFromString(c.MaxPositionPct)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing max_position_pct: %w", err)
	}

	period, err := types.ParsePeriod(c.RebalancePeriod)
	if err != nil {
		return ParsedBacktestConfig{}, fmt.Errorf("parsing rebalance_period: %w", err)
	}

	var policy rebalance.WeightPolicy
	switch c.RebalancePolicy {
	case "equal_weight":
		policy = rebalance.PolicyEqualWeight
	case "score_weighted":
		policy = rebalance.PolicyScoreWeighted
	default:
		return ParsedBacktestConfig{}, fmt.Errorf("unknown rebalance_policy %q", c.RebalancePolicy)
	}

	return ParsedBacktestConfig{
		DateRange:           dateRange,
		InitialCapital:      initialCapital,
		CommissionRate:      commissionRate,
		MinCommission:       minCommission,
		StampTaxRate:        stampTaxRate,
		TransferFeeRate:     transferFeeRate,
		SlippageRate:        slippageRate,
		MaxPositionPct:      maxPositionPct,
		LotSize:             c.LotSize,
		TopK:                c.TopK,
		RebalancePolicy:     policy,
		RebalancePeriod:     period,
		LiquidateAtEnd:      c.LiquidateAtEnd,
		BarFetchDeadline:    c.BarFetchDeadline,
		BarFetchRetryBudget: c.BarFetchRetryBudget,
	}, nil
}

// ToSignalConfig builds a signal.Config from the parsed settings.
func (c SignalConfig) ToSignalConfig() (signal.Config, error) {
	var strategy signal.Strategy
	switch c.Strategy {
	case "threshold":
		strategy = signal.StrategyThreshold
	case "top_k":
		strategy = signal.StrategyTopK
	case "percentile":
		strategy = signal.StrategyPercentile
	default:
		return signal.Config{}, fmt.Errorf("unknown signal strategy %q", c.Strategy)
	}

	return signal.Config{
		Strategy:         strategy,
		BuyThreshold:     c.BuyThreshold,
		SellThreshold:    c.SellThreshold,
		Percentile:       c.Percentile,
		StrengthBandUnit: c.StrengthBandUnit,
	}, nil
}
