package backtest

import (
	"strings"
	"testing"
)

func TestMonteCarloSimulateEmptyTradesIsZeroValued(t *testing.T) {
	result := sampleResult(t)
	result.Trades = nil

	mcs := NewMonteCarloSimulator(&MonteCarloConfig{Simulations: 100, Seed: 1, ConfidenceLevel: 0.95})
	mcResult := mcs.Simulate(result)

	if len(mcResult.Simulations) != 0 {
		t.Errorf("Simulations = %d, want 0 when the original result has no trades", len(mcResult.Simulations))
	}
	if mcResult.OriginalResult != result {
		t.Error("OriginalResult should point back at the input result")
	}
}

func TestMonteCarloSimulateProducesBoundedStatistics(t *testing.T) {
	result := sampleResult(t)
	mcs := NewMonteCarloSimulator(&MonteCarloConfig{Simulations: 500, Seed: 42, ConfidenceLevel: 0.95})
	mcResult := mcs.Simulate(result)

	if len(mcResult.Simulations) != 500 {
		t.Fatalf("Simulations = %d, want 500", len(mcResult.Simulations))
	}
	if mcResult.MinFinalReturnPct > mcResult.MeanFinalReturnPct || mcResult.MeanFinalReturnPct > mcResult.MaxFinalReturnPct {
		t.Errorf("mean return %.2f not within [%.2f, %.2f]", mcResult.MeanFinalReturnPct, mcResult.MinFinalReturnPct, mcResult.MaxFinalReturnPct)
	}
	if mcResult.ConfidenceIntervalLow > mcResult.ConfidenceIntervalHigh {
		t.Errorf("confidence interval inverted: [%.2f, %.2f]", mcResult.ConfidenceIntervalLow, mcResult.ConfidenceIntervalHigh)
	}
	if mcResult.ProbabilityOfProfit < 0 || mcResult.ProbabilityOfProfit > 100 {
		t.Errorf("ProbabilityOfProfit = %.2f, want a value in [0, 100]", mcResult.ProbabilityOfProfit)
	}
}

func TestMonteCarloSimulateIsDeterministicForAFixedSeed(t *testing.T) {
	result := sampleResult(t)
	cfg := &MonteCarloConfig{Simulations: 200, Seed: 7, ConfidenceLevel: 0.95}

	first := NewMonteCarloSimulator(cfg).Simulate(result)
	second := NewMonteCarloSimulator(cfg).Simulate(result)

	if first.MeanFinalReturnPct != second.MeanFinalReturnPct {
		t.Errorf("mean return differs across runs with the same seed: %.4f vs %.4f", first.MeanFinalReturnPct, second.MeanFinalReturnPct)
	}
}

func TestPrintMonteCarloResultsIncludesRiskMetrics(t *testing.T) {
	result := sampleResult(t)
	mcs := NewMonteCarloSimulator(&MonteCarloConfig{Simulations: 50, Seed: 1, ConfidenceLevel: 0.95})
	mcResult := mcs.Simulate(result)

	out := PrintMonteCarloResults(mcResult)
	for _, want := range []string{"MONTE CARLO SIMULATION RESULTS", "Risk of Ruin", "Probability of Profit"} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintMonteCarloResults output missing %q", want)
		}
	}
}

func TestMedianEvenAndOddLengths(t *testing.T) {
	if got := median([]float64{1, 2, 3}); got != 2 {
		t.Errorf("median(odd) = %v, want 2", got)
	}
	if got := median([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("median(even) = %v, want 2.5", got)
	}
}

func TestStdDevRequiresAtLeastTwoValues(t *testing.T) {
	if got := stdDev([]float64{5}, 5); got != 0 {
		t.Errorf("stdDev(single value) = %v, want 0", got)
	}
}
