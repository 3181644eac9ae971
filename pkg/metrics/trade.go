package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "devicetrade"

// Reservation operation labels.
const (
	ReservationOpReserve  = "reserve"
	ReservationOpRelease  = "release"
	ReservationOpFinalize = "finalize"

	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Payment confirmation outcome labels.
const (
	ConfirmResultCompleted = "completed"
	ConfirmResultStale     = "invalid_state"
	ConfirmResultRecovered = "recovered"
	ConfirmResultRejected  = "rejected"
	ConfirmResultMismatch  = "amount_mismatch"
	ConfirmResultError     = "error"
)

// TradeMetrics covers the reservation and payment confirmation paths.
type TradeMetrics struct {
	reservations  *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	gateway       *prometheus.HistogramVec
}

// NewTradeMetrics registers trade metrics on reg. A nil registerer yields a no-op recorder.
func NewTradeMetrics(reg prometheus.Registerer) *TradeMetrics {
	if reg == nil {
		return &TradeMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_operations_total",
		Help:      "Inventory reservation operations by outcome.",
	}, []string{"op", "result"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_confirmations_total",
		Help:      "Payment confirmation requests by outcome.",
	}, []string{"result"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "payment_gateway_seconds",
		Help:      "Latency of payment gateway calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op"})
	reg.MustRegister(reservations, confirmations, gateway)
	return &TradeMetrics{
		reservations:  reservations,
		confirmations: confirmations,
		gateway:       gateway,
	}
}

// ObserveReservation counts one reservation operation.
func (m *TradeMetrics) ObserveReservation(op, result string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

// ObserveConfirmation counts one confirm outcome.
func (m *TradeMetrics) ObserveConfirmation(result string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveGateway records the latency of a gateway call.
func (m *TradeMetrics) ObserveGateway(op string, elapsed time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(op)).Observe(elapsed.Seconds())
}
