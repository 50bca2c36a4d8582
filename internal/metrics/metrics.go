// Package metrics exposes Prometheus collectors for inventory operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation names used as label values.
const (
	OpRegister   = "register"
	OpPurchase   = "purchase"
	OpUnregister = "unregister"
)

// Inventory groups the collectors. A nil *Inventory records nothing.
type Inventory struct {
	operations *prometheus.CounterVec
	tickets    *prometheus.CounterVec
	released   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	remaining  *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Inventory {
	f := promauto.With(reg)
	return &Inventory{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_operations_total",
				Help: "Inventory operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		tickets: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_tickets_claimed_total",
				Help: "Tickets claimed by register or purchase",
			},
			[]string{"event_id", "ticket_type"},
		),
		released: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_tickets_released_total",
				Help: "Tickets returned to inventory by cancellation",
			},
			[]string{"event_id", "ticket_type"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inventory_operation_duration_seconds",
				Help:    "Duration of inventory operations",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"operation"},
		),
		remaining: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inventory_tickets_remaining",
				Help: "Tickets remaining per event and ticket type after the last change",
			},
			[]string{"event_id", "ticket_type"},
		),
	}
}

// Observe records the outcome and latency of one operation.
func (m *Inventory) Observe(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(took.Seconds())
}

// Claimed counts tickets taken from a tier.
func (m *Inventory) Claimed(eventID, ticketType string, qty int) {
	if m == nil {
		return
	}
	m.tickets.WithLabelValues(eventID, tierLabel(ticketType)).Add(float64(qty))
}

// Released counts tickets returned to a tier.
func (m *Inventory) Released(eventID, ticketType string, qty int) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(eventID, tierLabel(ticketType)).Add(float64(qty))
}

// Remaining sets the remaining-tickets gauge.
func (m *Inventory) Remaining(eventID, ticketType string, left int) {
	if m == nil {
		return
	}
	m.remaining.WithLabelValues(eventID, tierLabel(ticketType)).Set(float64(left))
}

func tierLabel(ticketType string) string {
	if ticketType == "" {
		return "general_admission"
	}
	return ticketType
}
