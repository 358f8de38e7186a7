package observability

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// GameMetrics records wager lifecycle activity and the pool's capital
// position for scraping via /metrics.
type GameMetrics struct {
	betsPlaced    *prometheus.CounterVec
	betsSettled   *prometheus.CounterVec
	betsCancelled prometheus.Counter
	wagered       prometheus.Counter
	paidOut       prometheus.Counter
	poolCapital   prometheus.Gauge
	poolReserved  prometheus.Gauge
	rpcRequests   *prometheus.CounterVec
	rpcLatency    *prometheus.HistogramVec
}

var (
	gameMetricsOnce sync.Once
	gameRegistry    *GameMetrics
)

// Metrics returns the lazily-initialised metrics registry shared by the node
// and the RPC layer.
func Metrics() *GameMetrics {
	gameMetricsOnce.Do(func() {
		gameRegistry = &GameMetrics{
			betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coinbet",
				Subsystem: "slots",
				Name:      "bets_placed_total",
				Help:      "Total wagers accepted, segmented by outcome of the placement attempt.",
			}, []string{"outcome"}),
			betsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coinbet",
				Subsystem: "slots",
				Name:      "bets_settled_total",
				Help:      "Total wagers settled, segmented by win or loss.",
			}, []string{"result"}),
			betsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coinbet",
				Subsystem: "slots",
				Name:      "bets_cancelled_total",
				Help:      "Total expired wagers cancelled and refunded.",
			}),
			wagered: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coinbet",
				Subsystem: "slots",
				Name:      "wagered_wei_total",
				Help:      "Cumulative gross wager volume in wei.",
			}),
			paidOut: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "coinbet",
				Subsystem: "slots",
				Name:      "paid_out_wei_total",
				Help:      "Cumulative winnings paid from the pool in wei.",
			}),
			poolCapital: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "coinbet",
				Subsystem: "pool",
				Name:      "capital_wei",
				Help:      "Current pool capital in wei.",
			}),
			poolReserved: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "coinbet",
				Subsystem: "pool",
				Name:      "reserved_wei",
				Help:      "Capital currently reserved against in-flight wagers in wei.",
			}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "coinbet",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "coinbet",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			gameRegistry.betsPlaced,
			gameRegistry.betsSettled,
			gameRegistry.betsCancelled,
			gameRegistry.wagered,
			gameRegistry.paidOut,
			gameRegistry.poolCapital,
			gameRegistry.poolReserved,
			gameRegistry.rpcRequests,
			gameRegistry.rpcLatency,
		)
	})
	return gameRegistry
}

// ObserveBetPlaced records a placement attempt and its gross amount when
// accepted.
func (m *GameMetrics) ObserveBetPlaced(outcome string, amount *big.Int) {
	if m == nil {
		return
	}
	m.betsPlaced.WithLabelValues(outcome).Inc()
	if outcome == "accepted" && amount != nil {
		f, _ := new(big.Float).SetInt(amount).Float64()
		m.wagered.Add(f)
	}
}

// ObserveBetSettled records a settlement and any payout.
func (m *GameMetrics) ObserveBetSettled(won bool, payout *big.Int) {
	if m == nil {
		return
	}
	result := "loss"
	if won {
		result = "win"
	}
	m.betsSettled.WithLabelValues(result).Inc()
	if won && payout != nil {
		f, _ := new(big.Float).SetInt(payout).Float64()
		m.paidOut.Add(f)
	}
}

// ObserveBetCancelled records an expiry refund.
func (m *GameMetrics) ObserveBetCancelled() {
	if m == nil {
		return
	}
	m.betsCancelled.Inc()
}

// SetPoolGauges refreshes the capital and reservation gauges.
func (m *GameMetrics) SetPoolGauges(capital, reserved *big.Int) {
	if m == nil {
		return
	}
	if capital != nil {
		f, _ := new(big.Float).SetInt(capital).Float64()
		m.poolCapital.Set(f)
	}
	if reserved != nil {
		f, _ := new(big.Float).SetInt(reserved).Float64()
		m.poolReserved.Set(f)
	}
}

// ObserveRPC records one JSON-RPC request.
func (m *GameMetrics) ObserveRPC(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(seconds)
}
