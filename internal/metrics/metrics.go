// Package metrics exposes governor metrics to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/riskgovernor/internal/domain"
)

// Transaction outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeNotFound       = "not_found"
	OutcomeBudgetExceeded = "budget_exceeded"
	OutcomeError          = "error"
)

// Recorder records governor metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	transactions       *prometheus.CounterVec
	transactionLatency prometheus.Histogram
	escalations        *prometheus.CounterVec
	calls              *prometheus.CounterVec
	callLatency        *prometheus.HistogramVec
	sideEffectFailures *prometheus.CounterVec
	budgetUsage        *prometheus.HistogramVec
}

// New creates a recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		transactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risk_governor_transactions_total",
				Help: "Market event transactions by outcome",
			},
			[]string{"outcome"},
		),
		transactionLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "risk_governor_transaction_duration_seconds",
				Help:    "Duration of market event transactions in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		escalations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risk_governor_escalations_total",
				Help: "Escalations by reason",
			},
			[]string{"reason"},
		),
		calls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risk_governor_calls_total",
				Help: "Dispatched skill and reasoner calls",
			},
			[]string{"kind", "name", "status"},
		),
		callLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "risk_governor_call_duration_seconds",
				Help:    "Duration of dispatched calls in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"kind"},
		),
		sideEffectFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risk_governor_side_effect_failures_total",
				Help: "Best-effort side effects that failed, by channel",
			},
			[]string{"channel"},
		),
		budgetUsage: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "risk_governor_budget_used",
				Help:    "Budget consumed per successful transaction",
				Buckets: []float64{1, 2, 4, 6, 8, 12, 16, 24},
			},
			[]string{"counter"},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveCall implements dispatch.Observer.
func (r *Recorder) ObserveCall(kind, name string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.calls.WithLabelValues(kind, name, status).Inc()
	r.callLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveTransaction records one transaction's outcome and duration.
func (r *Recorder) ObserveTransaction(outcome string, d time.Duration) {
	r.transactions.WithLabelValues(outcome).Inc()
	r.transactionLatency.Observe(d.Seconds())
}

// ObserveBudget records how much budget a transaction consumed.
func (r *Recorder) ObserveBudget(u domain.BudgetUsage) {
	r.budgetUsage.WithLabelValues("steps").Observe(float64(u.StepsUsed))
	r.budgetUsage.WithLabelValues("reasoner_calls").Observe(float64(u.ReasonerCallsUsed))
	r.budgetUsage.WithLabelValues("skill_calls").Observe(float64(u.SkillCallsUsed))
}

// RecordEscalation counts each reason in a comma-joined escalation reason.
func (r *Recorder) RecordEscalation(reason string) {
	for _, part := range strings.Split(reason, ",") {
		if part = strings.TrimSpace(part); part != "" {
			r.escalations.WithLabelValues(part).Inc()
		}
	}
}

// RecordSideEffectFailure counts a failed best-effort side effect.
func (r *Recorder) RecordSideEffectFailure(channel string) {
	r.sideEffectFailures.WithLabelValues(channel).Inc()
}
