// Package metrics holds the in-process Prometheus instruments of the service.
package metrics

import (
	"time"

	"github.com/layer-3/keyauth/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	challengesIssued   prometheus.Counter
	verifications      *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	ledgerLookup       prometheus.Histogram
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		challengesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "keyauth_challenges_issued_total",
			Help: "Challenges issued.",
		}),
		verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keyauth_verifications_total",
			Help: "Challenge verifications by outcome.",
		}, []string{"outcome"}),
		sessionValidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keyauth_sessions_validated_total",
			Help: "Session validations by outcome.",
		}, []string{"outcome"}),
		ledgerLookup: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "keyauth_ledger_lookup_seconds",
			Help:    "Latency of account signer set lookups.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ChallengeIssued() {
	if m == nil {
		return
	}
	m.challengesIssued.Inc()
}

func (m *Metrics) Verification(err error) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(core.Code(err)).Inc()
}

func (m *Metrics) SessionValidation(err error) {
	if m == nil {
		return
	}
	m.sessionValidations.WithLabelValues(core.Code(err)).Inc()
}

func (m *Metrics) LedgerLookup(d time.Duration) {
	if m == nil {
		return
	}
	m.ledgerLookup.Observe(d.Seconds())
}
