package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Accept outcomes recorded by DeliveryMetrics.
const (
	AcceptOutcomeAccepted     = "accepted"
	AcceptOutcomeConflict     = "conflict"
	AcceptOutcomeInvalidState = "invalid_state"
	AcceptOutcomeNotFound     = "not_found"
	AcceptOutcomeError        = "error"
)

// DeliveryMetrics tracks how delivery workers' accept races resolve.
type DeliveryMetrics struct {
	accepts *prometheus.CounterVec
	retries prometheus.Counter
	done    *prometheus.CounterVec
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	accepts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_accept_total",
		Help: "Accept attempts by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_accept_retries_total",
		Help: "Accept transactions retried after a serialization abort.",
	})
	done := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_completed_total",
		Help: "Shop orders marked delivered, labelled by whether the ledger entry closed.",
	}, []string{"ledger"})
	reg.MustRegister(accepts, retries, done)
	return &DeliveryMetrics{accepts: accepts, retries: retries, done: done}
}

// ObserveAccept records one accept call and the retries it needed.
func (d *DeliveryMetrics) ObserveAccept(outcome string, retries int) {
	if d == nil || d.accepts == nil {
		return
	}
	d.accepts.WithLabelValues(normalizeLabel(outcome)).Inc()
	if retries > 0 {
		d.retries.Add(float64(retries))
	}
}

// ObserveDelivered records a delivered shop order.
func (d *DeliveryMetrics) ObserveDelivered(ledgerClosed bool) {
	if d == nil || d.done == nil {
		return
	}
	label := "closed"
	if !ledgerClosed {
		label = "open"
	}
	d.done.WithLabelValues(label).Inc()
}

// normalizeLabel maps an empty label value to "unknown".
func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
