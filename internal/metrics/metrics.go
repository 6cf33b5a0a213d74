// Package metrics is the engine's fire-and-forget metrics sink. Recording
// never returns an error to business code.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Module provides the registry and the business metrics sink.
var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
)

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Metrics exposes the billing engine counters and timers.
type Metrics struct {
	usageIngested   prometheus.Counter
	usageRated      prometheus.Counter
	ratingFailures  *prometheus.CounterVec
	rulesMatched    prometheus.Counter
	cyclesStarted   prometheus.Counter
	cyclesProcessed prometheus.Counter
	cycleDuration   prometheus.Histogram
	invoicesCreated prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		usageIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "bss_usage_records_ingested_total",
			Help: "Usage records accepted by ingestion.",
		}),
		usageRated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bss_usage_records_rated_total",
			Help: "Usage records successfully rated.",
		}),
		ratingFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bss_rating_failures_total",
			Help: "Usage records that could not be rated, by reason.",
		}, []string{"reason"}),
		rulesMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "bss_rating_rules_matched_total",
			Help: "Rating rule matches.",
		}),
		cyclesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "bss_billing_cycles_started_total",
			Help: "Billing cycles created.",
		}),
		cyclesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "bss_billing_cycles_processed_total",
			Help: "Billing cycles processed to completion.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bss_billing_cycle_processing_seconds",
			Help:    "Wall time spent processing one billing cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		invoicesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bss_invoices_created_total",
			Help: "Draft invoices emitted by cycle processing.",
		}),
	}
}

func (m *Metrics) IncUsageIngested() {
	if m == nil {
		return
	}
	m.usageIngested.Inc()
}

func (m *Metrics) IncUsageRated() {
	if m == nil {
		return
	}
	m.usageRated.Inc()
}

func (m *Metrics) IncRatingFailure(reason string) {
	if m == nil {
		return
	}
	m.ratingFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncRuleMatched() {
	if m == nil {
		return
	}
	m.rulesMatched.Inc()
}

func (m *Metrics) IncCycleStarted() {
	if m == nil {
		return
	}
	m.cyclesStarted.Inc()
}

func (m *Metrics) IncCycleProcessed() {
	if m == nil {
		return
	}
	m.cyclesProcessed.Inc()
}

func (m *Metrics) ObserveCycleProcessing(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) IncInvoiceCreated() {
	if m == nil {
		return
	}
	m.invoicesCreated.Inc()
}
