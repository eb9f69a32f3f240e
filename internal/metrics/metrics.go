package metrics

import (
	"context"
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
)

const namespace = "dimmersync"

// Metrics holds the Prometheus collectors for sync and ping runs.
//
// It implements history.Recorder so it can sit in a history.MultiRecorder
// next to the SQLite repository.
type Metrics struct {
	reg prometheus.Registerer

	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	attempts      *prometheus.HistogramVec
	writes        prometheus.Counter
	failedWrites  prometheus.Counter
	failedDevices *prometheus.CounterVec
	lastRun       *prometheus.GaugeVec
	info          *prometheus.GaugeVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of reconciliation and ping runs",
			},
			[]string{"kind", "result"}, // kind: reconcile/ping
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Run duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		attempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_attempts",
				Help:      "Passes needed per run",
				Buckets:   []float64{1, 2, 3, 5},
			},
			[]string{"kind"},
		),
		writes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parameter_writes_total",
				Help:      "Total number of configuration parameter writes attempted",
			},
		),
		failedWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parameter_write_failures_total",
				Help:      "Writes still failing after the last attempt of a run",
			},
		),
		failedDevices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failed_devices_total",
				Help:      "Total number of devices that failed within a run",
			},
			[]string{"kind"},
		),
		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Start time of the most recent run",
			},
			[]string{"kind"},
		),
		info: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "dimmersync build info",
			},
			[]string{"version", "go_version"},
		),
	}
}

// SetInfo exposes the build version.
func (m *Metrics) SetInfo(version string) {
	m.info.WithLabelValues(version, runtime.Version()).Set(1)
}

// RecordRun updates the run counters. It never fails.
func (m *Metrics) RecordRun(_ context.Context, run history.Run) error {
	m.runs.WithLabelValues(run.Kind, run.Result).Inc()

	if run.Result == history.ResultSkipped {
		return nil
	}

	m.runDuration.WithLabelValues(run.Kind).Observe(run.Elapsed.Seconds())
	if run.Attempts > 0 {
		m.attempts.WithLabelValues(run.Kind).Observe(float64(run.Attempts))
	}
	if !run.StartedAt.IsZero() {
		m.lastRun.WithLabelValues(run.Kind).Set(float64(run.StartedAt.Unix()))
	}

	m.writes.Add(float64(run.Writes))
	m.failedWrites.Add(float64(run.FailedWrites))
	if run.FailedDevices > 0 {
		m.failedDevices.WithLabelValues(run.Kind).Add(float64(run.FailedDevices))
	}
	return nil
}

// ObserveQueue exports depth() as the queue depth gauge, sampled at
// scrape time.
func (m *Metrics) ObserveQueue(depth func() int) {
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Operation groups waiting in the queue",
		},
		func() float64 { return float64(depth()) },
	)
}

// ObserveConnection exports connected() as a 0/1 gauge named
// <name>_connected.
func (m *Metrics) ObserveConnection(name string, connected func() bool) {
	promauto.With(m.reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name + "_connected",
			Help:      "Whether the " + name + " connection is up",
		},
		func() float64 {
			if connected() {
				return 1
			}
			return 0
		},
	)
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
