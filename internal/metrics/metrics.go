package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure stages
const (
	StageParse   = "parse"
	StageResolve = "resolve"
	StageEncode  = "encode"
	StageSend    = "send"
)

// Collector holds Prometheus metrics collectors
type Collector struct {
	keysResolvedTotal *prometheus.CounterVec
	recordsSentTotal  *prometheus.CounterVec
	failuresTotal     *prometheus.CounterVec
	resolveDuration   prometheus.Histogram
}

// NewCollector creates a new metrics collector registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		keysResolvedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafpartitionkey_keys_resolved_total",
				Help: "Total number of partition keys resolved, by resolution rule",
			},
			[]string{"source"},
		),
		recordsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafpartitionkey_records_sent_total",
				Help: "Total number of keyed records written to a sink",
			},
			[]string{"sink"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafpartitionkey_failures_total",
				Help: "Total number of records dropped, by pipeline stage",
			},
			[]string{"stage"},
		),
		resolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kafpartitionkey_resolve_duration_seconds",
				Help:    "Duration of partition key resolution in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),
	}
}

// IncKeysResolved increments the resolved keys counter
func (c *Collector) IncKeysResolved(source string) {
	c.keysResolvedTotal.WithLabelValues(source).Inc()
}

// IncRecordsSent increments the records sent counter
func (c *Collector) IncRecordsSent(sink string) {
	c.recordsSentTotal.WithLabelValues(sink).Inc()
}

// IncFailures increments the failures counter for a stage
func (c *Collector) IncFailures(stage string) {
	c.failuresTotal.WithLabelValues(stage).Inc()
}

// ObserveResolveDuration records the duration of key resolution
func (c *Collector) ObserveResolveDuration(seconds float64) {
	c.resolveDuration.Observe(seconds)
}
