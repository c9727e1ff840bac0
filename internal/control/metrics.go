package control

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics groups the process-level counters exposed on /metrics and
// implements worker.MetricsRecorder, so a running cycle can report into it
// directly. Each Surface owns its own registry-backed instance rather than
// a package global, so tests can spin up independent Surfaces.
type metrics struct {
	fetchTotal          *prometheus.CounterVec
	evalTotal           *prometheus.CounterVec
	blockedDomainsTotal prometheus.Counter
	cycleDurationSecs   prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		fetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rssingest_fetch_total",
			Help: "Total article fetch attempts, labeled by outcome.",
		}, []string{"outcome"}),
		evalTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rssingest_eval_total",
			Help: "Total LLM evaluation attempts, labeled by outcome.",
		}, []string{"outcome"}),
		blockedDomainsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rssingest_blocked_domains_total",
			Help: "Total hosts added to the blocked-domain set.",
		}),
		cycleDurationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rssingest_cycle_duration_seconds",
			Help:    "Duration of a full ingestion cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *metrics) ObserveFetch(outcome string)   { m.fetchTotal.WithLabelValues(outcome).Inc() }
func (m *metrics) ObserveEval(outcome string)    { m.evalTotal.WithLabelValues(outcome).Inc() }
func (m *metrics) ObserveBlockedDomain()         { m.blockedDomainsTotal.Inc() }
func (m *metrics) ObserveCycle(d time.Duration)  { m.cycleDurationSecs.Observe(d.Seconds()) }
