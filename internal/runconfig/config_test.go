package config

import (
	"os"
	"testing"
	"time"

	"github.com/bikeshrana/ashare-backtest-go/internal/rebalance"
	"github.com/bikeshrana/ashare-backtest-go/internal/signal"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.Paths.DataPath != "./data" {
		t.Errorf("DataPath = %q, want ./data", cfg.Paths.DataPath)
	}
	if cfg.Backtest.TopK != 10 {
		t.Errorf("TopK = %d, want 10", cfg.Backtest.TopK)
	}
	if cfg.Signal.Strategy != "top_k" {
		t.Errorf("Strategy = %q, want top_k", cfg.Signal.Strategy)
	}
}

func TestLoadEnvVarsOverrideDefaults(t *testing.T) {
	t.Setenv("DATA_PATH", "/tmp/custom-data")
	t.Setenv("RESULT_PATH", "/tmp/custom-results")
	t.Setenv("RANDOM_SEED", "42")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.Paths.DataPath != "/tmp/custom-data" {
		t.Errorf("DataPath = %q, want /tmp/custom-data", cfg.Paths.DataPath)
	}
	if cfg.Paths.ResultPath != "/tmp/custom-results" {
		t.Errorf("ResultPath = %q, want /tmp/custom-results", cfg.Paths.ResultPath)
	}
	if cfg.Paths.RandomSeed != 42 {
		t.Errorf("RandomSeed = %d, want 42", cfg.Paths.RandomSeed)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := writeTempYAML(t, ""+
		"paths:\n"+
		"  data_path: /data/custom\n"+
		"backtest:\n"+
		"  top_k: 25\n"+
		"  initial_capital: \"500000\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: unexpected error: %v", err)
	}
	if cfg.Paths.DataPath != "/data/custom" {
		t.Errorf("DataPath = %q, want /data/custom", cfg.Paths.DataPath)
	}
	if cfg.Backtest.TopK != 25 {
		t.Errorf("TopK = %d, want 25", cfg.Backtest.TopK)
	}
	if cfg.Backtest.InitialCapital != "500000" {
		t.Errorf("InitialCapital = %q, want 500000", cfg.Backtest.InitialCapital)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	return f.Name()
}

func TestBacktestConfigParse(t *testing.T) {
	bc := BacktestConfig{
		InitialCapital:      "1000000",
		CommissionRate:      "0.0003",
		MinCommission:       "5",
		StampTaxRate:        "0.0005",
		TransferFeeRate:     "0.00002",
		SlippageRate:        "0.001",
		MaxPositionPct:      "0.2",
		LotSize:             100,
		TopK:                10,
		RebalancePolicy:     "equal_weight",
		RebalancePeriod:     "MONTH",
		LiquidateAtEnd:      true,
		BarFetchDeadline:    30 * time.Second,
		BarFetchRetryBudget: 3,
	}
	dr, err := types.NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}

	parsed, err := bc.Parse(dr)
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if parsed.TopK != 10 {
		t.Errorf("TopK = %d, want 10", parsed.TopK)
	}
	if parsed.RebalancePolicy != rebalance.PolicyEqualWeight {
		t.Errorf("RebalancePolicy = %v, want PolicyEqualWeight", parsed.RebalancePolicy)
	}
	if parsed.RebalancePeriod != types.PeriodMonth {
		t.Errorf("RebalancePeriod = %v, want PeriodMonth", parsed.RebalancePeriod)
	}
	if !parsed.InitialCapital.IsPositive() {
		t.Error("InitialCapital should be positive after parsing")
	}
}

func TestBacktestConfigParseRejectsUnknownPolicy(t *testing.T) {
	bc := BacktestConfig{
		InitialCapital:  "1000000",
		CommissionRate:  "0.0003",
		MinCommission:   "5",
		StampTaxRate:    "0.0005",
		TransferFeeRate: "0.00002",
		SlippageRate:    "0.001",
		MaxPositionPct:  "0.2",
		RebalancePolicy: "unknown_policy",
		RebalancePeriod: "MONTH",
	}
	dr, err := types.NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	if _, err := bc.Parse(dr); err == nil {
		t.Fatal("expected an error for an unknown rebalance_policy")
	}
}

func TestBacktestConfigParseRejectsBadDecimal(t *testing.T) {
	bc := BacktestConfig{InitialCapital: "not-a-number"}
	dr, err := types.NewDateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewDateRange: %v", err)
	}
	if _, err := bc.Parse(dr); err == nil {
		t.Fatal("expected an error for an unparseable initial_capital")
	}
}

func TestSignalConfigToSignalConfig(t *testing.T) {
	sc := SignalConfig{Strategy: "threshold", BuyThreshold: 0.2, SellThreshold: -0.2, StrengthBandUnit: 1.0}
	got, err := sc.ToSignalConfig()
	if err != nil {
		t.Fatalf("ToSignalConfig: unexpected error: %v", err)
	}
	if got.Strategy != signal.StrategyThreshold {
		t.Errorf("Strategy = %v, want StrategyThreshold", got.Strategy)
	}
	if got.BuyThreshold != 0.2 {
		t.Errorf("BuyThreshold = %v, want 0.2", got.BuyThreshold)
	}
}

func TestSignalConfigToSignalConfigRejectsUnknownStrategy(t *testing.T) {
	sc := SignalConfig{Strategy: "unknown"}
	if _, err := sc.ToSignalConfig(); err == nil {
		t.Fatal("expected an error for an unknown signal strategy")
	}
}
