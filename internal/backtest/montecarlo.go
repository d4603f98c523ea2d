package backtest

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MonteCarloConfig configures a trade-resampling robustness check on a
// completed Result. Seed is the RANDOM_SEED value from §6; zero means
// "use current time", which makes results non-reproducible and is only
// acceptable for ad hoc exploration, not for recorded runs.
type MonteCarloConfig struct {
	Simulations     int
	Seed            int64
	ConfidenceLevel float64 // e.g. 0.95 for a 95% interval
}

// MonteCarloResult aggregates statistics across every resampled run.
type MonteCarloResult struct {
	Config         *MonteCarloConfig
	OriginalResult *Result
	Simulations    []SimulationRun

	MeanFinalReturnPct     float64
	MedianFinalReturnPct   float64
	StdDevFinalReturnPct   float64
	MinFinalReturnPct      float64
	MaxFinalReturnPct      float64
	ConfidenceIntervalLow  float64
	ConfidenceIntervalHigh float64

	MeanMaxDrawdownPct   float64
	MedianMaxDrawdownPct float64
	WorstMaxDrawdownPct  float64
	BestMaxDrawdownPct   float64

	MeanSharpe   float64
	MedianSharpe float64
	MinSharpe    float64
	MaxSharpe    float64

	ProbabilityOfProfit float64 // % of simulations with positive return
	ProbabilityOfTarget float64 // % of simulations meeting a 10% return target
	RiskOfRuin          float64 // % of simulations with > 50% drawdown

	Duration time.Duration
}

// SimulationRun is one bootstrap resample of the original trade log.
type SimulationRun struct {
	ID             string
	RunNumber      int
	FinalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// MonteCarloSimulator resamples a Result's trade sequence with
// replacement to estimate how much of the reported performance is
// attributable to trade order rather than edge.
type MonteCarloSimulator struct {
	config *MonteCarloConfig
	rand   *rand.Rand
}

func NewMonteCarloSimulator(config *MonteCarloConfig) *MonteCarloSimulator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MonteCarloSimulator{config: config, rand: rand.New(rand.NewSource(seed))}
}

// Simulate runs Config.Simulations bootstrap resamples of result.Trades.
func (mcs *MonteCarloSimulator) Simulate(result *Result) *MonteCarloResult {
	startTime := time.Now()

	if len(result.Trades) == 0 {
		return &MonteCarloResult{Config: mcs.config, OriginalResult: result, Duration: time.Since(startTime)}
	}

	initialCapital := result.Config.InitialCapital.InexactFloat64()
	pnls := make([]float64, len(result.Trades))
	for i, t := range result.Trades {
		pnls[i] = t.RealizedPnL.InexactFloat64()
	}

	simulations := make([]SimulationRun, mcs.config.Simulations)
	for i := 0; i < mcs.config.Simulations; i++ {
		simulations[i] = mcs.runSimulation(i+1, pnls, initialCapital)
	}

	return mcs.calculateStatistics(result, simulations, time.Since(startTime))
}

func (mcs *MonteCarloSimulator) runSimulation(runNumber int, pnls []float64, initialCapital float64) SimulationRun {
	resampled := mcs.resample(pnls)
	finalReturn, maxDrawdown, sharpe := mcs.walkEquity(resampled, initialCapital)
	return SimulationRun{
		ID:             uuid.New().String(),
		RunNumber:      runNumber,
		FinalReturnPct: finalReturn / initialCapital * 100,
		MaxDrawdownPct: maxDrawdown / initialCapital * 100,
		SharpeRatio:    sharpe,
	}
}

// resample draws len(original) P&Ls with replacement (the bootstrap).
func (mcs *MonteCarloSimulator) resample(original []float64) []float64 {
	n := len(original)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = original[mcs.rand.Intn(n)]
	}
	return out
}

func (mcs *MonteCarloSimulator) walkEquity(pnls []float64, initialCapital float64) (finalReturn, maxDrawdown, sharpe float64) {
	equity := initialCapital
	peak := initialCapital
	previous := initialCapital
	returns := make([]float64, 0, len(pnls))

	for _, pnl := range pnls {
		equity += pnl
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > maxDrawdown {
			maxDrawdown = dd
		}
		if previous != 0 {
			returns = append(returns, (equity-previous)/previous)
		}
		previous = equity
	}

	finalReturn = equity - initialCapital
	sharpe = sharpeFromReturns(returns)
	return finalReturn, maxDrawdown, sharpe
}

func sharpeFromReturns(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stdDev(returns, m)
	if sd == 0 {
		return 0
	}
	return (m / sd) * math.Sqrt(tradingDaysPerYear)
}

func (mcs *MonteCarloSimulator) calculateStatistics(original *Result, simulations []SimulationRun, duration time.Duration) *MonteCarloResult {
	result := &MonteCarloResult{Config: mcs.config, OriginalResult: original, Simulations: simulations, Duration: duration}

	n := len(simulations)
	if n == 0 {
		return result
	}

	returns := make([]float64, n)
	drawdowns := make([]float64, n)
	sharpes := make([]float64, n)
	profitCount, targetCount, ruinCount := 0, 0, 0

	for i, sim := range simulations {
		returns[i] = sim.FinalReturnPct
		drawdowns[i] = sim.MaxDrawdownPct
		sharpes[i] = sim.SharpeRatio
		if sim.FinalReturnPct > 0 {
			profitCount++
		}
		if sim.FinalReturnPct >= 10.0 {
			targetCount++
		}
		if sim.MaxDrawdownPct > 50.0 {
			ruinCount++
		}
	}

	sortedReturns := append([]float64(nil), returns...)
	sort.Float64s(sortedReturns)
	sortedDrawdowns := append([]float64(nil), drawdowns...)
	sort.Float64s(sortedDrawdowns)
	sortedSharpes := append([]float64(nil), sharpes...)
	sort.Float64s(sortedSharpes)

	result.MeanFinalReturnPct = mean(returns)
	result.MedianFinalReturnPct = median(sortedReturns)
	result.StdDevFinalReturnPct = stdDev(returns, result.MeanFinalReturnPct)
	result.MinFinalReturnPct = sortedReturns[0]
	result.MaxFinalReturnPct = sortedReturns[n-1]

	alpha := 1.0 - mcs.config.ConfidenceLevel
	lowerIdx := int(float64(n) * alpha / 2.0)
	upperIdx := int(float64(n) * (1.0 - alpha/2.0))
	if upperIdx >= n {
		upperIdx = n - 1
	}
	result.ConfidenceIntervalLow = sortedReturns[lowerIdx]
	result.ConfidenceIntervalHigh = sortedReturns[upperIdx]

	result.MeanMaxDrawdownPct = mean(drawdowns)
	result.MedianMaxDrawdownPct = median(sortedDrawdowns)
	result.WorstMaxDrawdownPct = sortedDrawdowns[n-1]
	result.BestMaxDrawdownPct = sortedDrawdowns[0]

	result.MeanSharpe = mean(sharpes)
	result.MedianSharpe = median(sortedSharpes)
	result.MinSharpe = sortedSharpes[0]
	result.MaxSharpe = sortedSharpes[n-1]

	result.ProbabilityOfProfit = float64(profitCount) / float64(n) * 100
	result.ProbabilityOfTarget = float64(targetCount) / float64(n) * 100
	result.RiskOfRuin = float64(ruinCount) / float64(n) * 100

	return result
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}

func stdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values) - 1)
	return math.Sqrt(variance)
}

// PrintMonteCarloResults formats Monte Carlo results for console display.
func PrintMonteCarloResults(result *MonteCarloResult) string {
	out := "\n"
	out += "═══════════════════════════════════════════════════════════════════════════════\n"
	out += "                      MONTE CARLO SIMULATION RESULTS\n"
	out += "═══════════════════════════════════════════════════════════════════════════════\n\n"

	out += "CONFIGURATION\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Simulations:          %d\n", result.Config.Simulations)
	out += fmt.Sprintf("Confidence Level:     %.0f%%\n", result.Config.ConfidenceLevel*100)
	out += fmt.Sprintf("Random Seed:          %d\n", result.Config.Seed)
	out += "\n"

	out += "ORIGINAL BACKTEST\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Total Return:         %s\n", formatPct(result.OriginalResult.Metrics.TotalReturn.InexactFloat64()))
	out += fmt.Sprintf("Max Drawdown:         %s\n", formatPct(result.OriginalResult.Metrics.MaxDrawdown.InexactFloat64()))
	out += fmt.Sprintf("Sharpe Ratio:         %s\n", formatRatio(result.OriginalResult.Metrics.Sharpe))
	out += fmt.Sprintf("Total Trades:         %d\n", len(result.OriginalResult.Trades))
	out += "\n"

	out += "FINAL RETURN STATISTICS\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Mean:                 %.2f%%\n", result.MeanFinalReturnPct)
	out += fmt.Sprintf("Median:               %.2f%%\n", result.MedianFinalReturnPct)
	out += fmt.Sprintf("Std Deviation:        %.2f%%\n", result.StdDevFinalReturnPct)
	out += fmt.Sprintf("Minimum:              %.2f%%\n", result.MinFinalReturnPct)
	out += fmt.Sprintf("Maximum:              %.2f%%\n", result.MaxFinalReturnPct)
	out += fmt.Sprintf("%.0f%% Confidence Int.:  %.2f%% to %.2f%%\n",
		result.Config.ConfidenceLevel*100, result.ConfidenceIntervalLow, result.ConfidenceIntervalHigh)
	out += "\n"

	out += "RISK METRICS\n"
	out += "─────────────────────────────────────────────────────────────────────────────\n"
	out += fmt.Sprintf("Probability of Profit:     %.1f%%\n", result.ProbabilityOfProfit)
	out += fmt.Sprintf("Probability of 10%% Target: %.1f%%\n", result.ProbabilityOfTarget)
	out += fmt.Sprintf("Risk of Ruin (>50%% DD):    %.1f%%\n", result.RiskOfRuin)
	out += "\n"
	out += fmt.Sprintf("Simulation completed in %s\n", result.Duration.String())
	out += "═══════════════════════════════════════════════════════════════════════════════\n"

	return out
}
