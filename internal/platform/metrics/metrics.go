// Package metrics holds the Prometheus instruments for the issuance service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every instrument. A nil *Metrics is valid and records
// nothing, so components can be built without one in tests.
type Metrics struct {
	CallbacksTotal        *prometheus.CounterVec // by result: issued, duplicate, unauthorized, failed
	VendorRequestsTotal   *prometheus.CounterVec // by operation and outcome
	SigningDuration       prometheus.Histogram
	JWKSCacheTotal        *prometheus.CounterVec // by result: hit, miss
	DecryptKeyTotal       *prometheus.CounterVec // by key generation and result
	DeliveriesTotal       *prometheus.CounterVec // by kind: credential, error; result
	StateTransitionsTotal *prometheus.CounterVec // by target state
	AuditDroppedTotal     prometheus.Counter
}

// New registers all instruments on reg. Use prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcissuer_callbacks_total",
			Help: "Vendor completion callbacks processed, by result",
		}, []string{"result"}),

		VendorRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcissuer_vendor_requests_total",
			Help: "Requests sent to the verification vendor, by operation and outcome",
		}, []string{"operation", "outcome"}),

		SigningDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcissuer_signing_duration_seconds",
			Help:    "Latency of key service signing calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		JWKSCacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcissuer_jwks_cache_total",
			Help: "JWKS cache lookups, by result",
		}, []string{"result"}),

		DecryptKeyTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcissuer_decrypt_key_attempts_total",
			Help: "Content key unwrap attempts, by key generation and result",
		}, []string{"key", "result"}),

		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcissuer_deliveries_total",
			Help: "Messages sent to the relying party, by kind and result",
		}, []string{"kind", "result"}),

		StateTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcissuer_session_transitions_total",
			Help: "Session state transitions written, by target state",
		}, []string{"to"}),

		AuditDroppedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vcissuer_audit_dropped_total",
			Help: "Audit events that could not be published",
		}),
	}
}

func (m *Metrics) IncCallback(result string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncVendorRequest(operation, outcome string) {
	if m == nil {
		return
	}
	m.VendorRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveSigning(d time.Duration) {
	if m == nil {
		return
	}
	m.SigningDuration.Observe(d.Seconds())
}

func (m *Metrics) IncJWKSCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.JWKSCacheTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncDecryptKey(key string, ok bool) {
	if m == nil {
		return
	}
	m.DecryptKeyTotal.WithLabelValues(key, resultLabel(ok)).Inc()
}

func (m *Metrics) IncDelivery(kind string, ok bool) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(kind, resultLabel(ok)).Inc()
}

func (m *Metrics) IncTransition(to string) {
	if m == nil {
		return
	}
	m.StateTransitionsTotal.WithLabelValues(to).Inc()
}

func (m *Metrics) IncAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDroppedTotal.Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
