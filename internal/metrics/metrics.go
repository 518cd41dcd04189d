package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ekubo_window"

// Outcome labels for Reconstructions.
const (
	OutcomeOK        = "ok"
	OutcomeIntegrity = "data_integrity"
	OutcomeInvalid   = "invalid_window"
)

// Metrics holds the collectors updated by the reconstruction runner.
type Metrics struct {
	Reconstructions *prometheus.CounterVec
	BoundaryActions *prometheus.CounterVec
	WindowTicks     *prometheus.HistogramVec
	FetchDuration   *prometheus.HistogramVec
	RunDuration     *prometheus.HistogramVec
	LastBlock       prometheus.Gauge
}

// New builds the collectors and registers them when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reconstructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconstructions_total",
			Help:      "Pool window reconstructions by outcome.",
		}, []string{"pool", "outcome"}),
		BoundaryActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boundary_actions_total",
			Help:      "Boundary events applied to reconstructed windows, by side and action.",
		}, []string{"side", "action"}),
		WindowTicks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_ticks",
			Help:      "Tick events per reconstructed window, boundaries included.",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 10),
		}, []string{"pool"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of getQuoteData calls, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full reconstruction run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{}),
		LastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_block",
			Help:      "Last block number reconstructed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Reconstructions,
			m.BoundaryActions,
			m.WindowTicks,
			m.FetchDuration,
			m.RunDuration,
			m.LastBlock,
		)
	}
	return m
}
