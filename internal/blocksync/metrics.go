package blocksync

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "blocksync"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Current long sync phase.
	Phase metrics.Gauge
	// Phase transitions, labeled by the phase entered.
	Transitions metrics.Counter
	// Number of master elections.
	Elections metrics.Counter
	// Number of masters abandoned after the rotation limit.
	Rotations metrics.Counter
	// Number of peers in the pool.
	Peers metrics.Gauge
	// Number of headers waiting for their body.
	QueuedHeaders metrics.Gauge
	// Number of headers whose body is being retrieved.
	InflightHeaders metrics.Gauge
	// Number of blocks waiting to be imported.
	QueuedBlocks metrics.Gauge
	// Number of blocks imported.
	ImportedBlocks metrics.Counter
	// Number of the local head.
	Height metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		Phase: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "phase",
			Help:      "Current long sync phase: 0 hash retrieving, 1 block retrieving, 2 idle.",
		}, labels).With(labelsAndValues...),
		Transitions: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "phase_transitions",
			Help:      "Number of long sync phase transitions.",
		}, append(labels, "phase")).With(labelsAndValues...),
		Elections: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "master_elections",
			Help:      "Number of master peers elected.",
		}, labels).With(labelsAndValues...),
		Rotations: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "master_rotations",
			Help:      "Number of master peers abandoned after the rotation limit.",
		}, labels).With(labelsAndValues...),
		Peers: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "peers",
			Help:      "Number of peers in the pool.",
		}, labels).With(labelsAndValues...),
		QueuedHeaders: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "queued_headers",
			Help:      "Number of headers waiting for their body.",
		}, labels).With(labelsAndValues...),
		InflightHeaders: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "inflight_headers",
			Help:      "Number of headers whose body is being retrieved.",
		}, labels).With(labelsAndValues...),
		QueuedBlocks: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "queued_blocks",
			Help:      "Number of blocks waiting to be imported.",
		}, labels).With(labelsAndValues...),
		ImportedBlocks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "imported_blocks",
			Help:      "Number of blocks imported.",
		}, labels).With(labelsAndValues...),
		Height: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "height",
			Help:      "Number of the local head block.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Phase:           discard.NewGauge(),
		Transitions:     discard.NewCounter(),
		Elections:       discard.NewCounter(),
		Rotations:       discard.NewCounter(),
		Peers:           discard.NewGauge(),
		QueuedHeaders:   discard.NewGauge(),
		InflightHeaders: discard.NewGauge(),
		QueuedBlocks:    discard.NewGauge(),
		ImportedBlocks:  discard.NewCounter(),
		Height:          discard.NewGauge(),
	}
}
