// Package metrics exposes prometheus instruments for the rapid and the
// overgangsstønad need. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes recorded by the rapid.
const (
	MessageAccepted = "accepted"
	MessageRejected = "rejected"
	MessageInvalid  = "invalid"
	MessageFailed   = "failed"
)

// Metrics holds the registered instruments.
type Metrics struct {
	// Consumed messages by river outcome
	RapidMessages *prometheus.CounterVec

	// Resolved needs by outcome: a feil tag, "ok" or "error"
	Behov *prometheus.CounterVec

	// EF sak call latency by result
	EFSakLatency *prometheus.HistogramVec

	// Token fetches by result
	TokenFetches *prometheus.CounterVec
}

// New registers all instruments with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RapidMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rapid_messages_total",
			Help: "Messages read from the rapid by outcome",
		}, []string{"outcome"}),

		Behov: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "overgangsstonad_behov_total",
			Help: "Overgangsstønad needs handled by outcome",
		}, []string{"outcome"}),

		EFSakLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "efsak_request_duration_seconds",
			Help:    "Duration of period lookups against EF sak",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}), // result: "ok", "error"

		TokenFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "azure_token_fetches_total",
			Help: "Client credentials token fetches by result",
		}, []string{"result"}),
	}
}

// IncrementMessage records how the rapid handled one consumed message.
func (m *Metrics) IncrementMessage(outcome string) {
	if m != nil {
		m.RapidMessages.WithLabelValues(outcome).Inc()
	}
}

// IncrementBehov records the outcome of one resolved need.
func (m *Metrics) IncrementBehov(outcome string) {
	if m != nil {
		m.Behov.WithLabelValues(outcome).Inc()
	}
}

// ObserveEFSakLatency records the duration of an EF sak lookup.
func (m *Metrics) ObserveEFSakLatency(err error, d time.Duration) {
	if m != nil {
		m.EFSakLatency.WithLabelValues(result(err)).Observe(d.Seconds())
	}
}

// IncrementTokenFetch records a token fetch.
func (m *Metrics) IncrementTokenFetch(err error) {
	if m != nil {
		m.TokenFetches.WithLabelValues(result(err)).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
