package runmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics holds the Prometheus metrics emitted by a single backtest run.
type RunMetrics struct {
	BarsProcessedTotal *prometheus.CounterVec
	SignalsTotal       *prometheus.CounterVec
	TradesTotal        *prometheus.CounterVec
	TradeNotional      *prometheus.CounterVec
	RunDuration        prometheus.Histogram

	ActivePositions prometheus.Gauge
	PortfolioValue  prometheus.Gauge
	AvailableCash   prometheus.Gauge

	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// NewRunMetrics creates and registers the metrics for one engine run.
func NewRunMetrics(namespace string) *RunMetrics {
	if namespace == "" {
		namespace = "backtest"
	}

	return &RunMetrics{
		BarsProcessedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_processed_total",
				Help:      "Total number of bars consumed by the engine",
			},
			[]string{"instrument"},
		),
		SignalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_emitted_total",
				Help:      "Total number of trading signals emitted by the signal adapter",
			},
			[]string{"instrument", "signal_type", "strength"},
		),
		TradesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of trades executed",
			},
			[]string{"instrument", "side"},
		),
		TradeNotional: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_notional_total",
				Help:      "Total notional value traded",
			},
			[]string{"instrument", "side"},
		),
		RunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of a complete backtest run",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 600},
			},
		),

		ActivePositions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_positions",
				Help:      "Number of open positions at the most recently processed bar",
			},
		),
		PortfolioValue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_value",
				Help:      "Mark-to-market portfolio value at the most recently processed bar",
			},
		),
		AvailableCash: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "available_cash",
				Help:      "Uninvested cash at the most recently processed bar",
			},
		),

		CircuitBreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		CircuitBreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"breaker"},
		),
	}
}
