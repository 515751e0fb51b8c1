package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks order finalization and the side effects around it.
type CheckoutMetrics struct {
	finalized           *prometheus.CounterVec
	finalizeFailures    *prometheus.CounterVec
	signatureFailures   prometheus.Counter
	notificationFailure prometheus.Counter
	inconsistentOrders  prometheus.Gauge
	expiredDrafts       prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_finalized_total",
			Help: "Orders finalized, by payment method.",
		}, []string{"method"}),
		finalizeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_finalize_failures_total",
			Help: "Finalize attempts rejected or rolled back, by payment method and error code.",
		}, []string{"method", "code"}),
		signatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_signature_failures_total",
			Help: "Gateway callbacks rejected because the signature did not verify.",
		}),
		notificationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_notification_failures_total",
			Help: "Order confirmation emails that failed to send.",
		}),
		inconsistentOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orders_inconsistent",
			Help: "Paid orders missing a payment or order lines at the last reconciliation pass.",
		}),
		expiredDrafts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_drafts_expired_total",
			Help: "Unpaid order drafts removed by the cleanup job.",
		}),
	}
	reg.MustRegister(m.finalized, m.finalizeFailures, m.signatureFailures, m.notificationFailure, m.inconsistentOrders, m.expiredDrafts)
	return m
}

// IncFinalized counts a committed finalize for the payment method.
func (m *CheckoutMetrics) IncFinalized(method string) {
	if m == nil || m.finalized == nil {
		return
	}
	m.finalized.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncFinalizeFailure counts a finalize that did not commit.
func (m *CheckoutMetrics) IncFinalizeFailure(method, code string) {
	if m == nil || m.finalizeFailures == nil {
		return
	}
	m.finalizeFailures.WithLabelValues(normalizeLabel(method), normalizeLabel(code)).Inc()
}

// IncSignatureFailure counts a rejected gateway callback.
func (m *CheckoutMetrics) IncSignatureFailure() {
	if m == nil || m.signatureFailures == nil {
		return
	}
	m.signatureFailures.Inc()
}

// IncNotificationFailure counts a confirmation email that could not be sent.
func (m *CheckoutMetrics) IncNotificationFailure() {
	if m == nil || m.notificationFailure == nil {
		return
	}
	m.notificationFailure.Inc()
}

// SetInconsistentOrders records the result of the latest reconciliation pass.
func (m *CheckoutMetrics) SetInconsistentOrders(count int) {
	if m == nil || m.inconsistentOrders == nil {
		return
	}
	m.inconsistentOrders.Set(float64(count))
}

// AddExpiredDrafts counts drafts removed by the cleanup job.
func (m *CheckoutMetrics) AddExpiredDrafts(count int) {
	if m == nil || m.expiredDrafts == nil || count <= 0 {
		return
	}
	m.expiredDrafts.Add(float64(count))
}
