package cart

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSucceeded     = "succeeded"
	outcomeInvalidOrder  = "invalid_order"
	outcomeMissingFields = "missing_fields"
	outcomeInProgress    = "in_progress"
	outcomePaymentFailed = "payment_failed"
)

// Metrics is optional; a nil *Metrics records nothing.
type Metrics struct {
	Checkouts *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Unpriced  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_checkouts_total",
				Help: "Checkout attempts by outcome",
			},
			[]string{"portal", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cart_checkout_duration_seconds",
				Help:    "Time spent in the processing state",
				Buckets: []float64{.1, .5, 1, 2, 3, 5, 10},
			},
			[]string{"portal"},
		),
		Unpriced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cart_unpriced_lines_total",
				Help: "Checked-out lines priced at zero because the product was missing from the catalog",
			},
			[]string{"portal"},
		),
	}

	reg.MustRegister(m.Checkouts, m.Duration, m.Unpriced)
	return m
}

func (m *Metrics) checkout(portal, outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(portal, outcome).Inc()
}

func (m *Metrics) processed(portal string, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(portal).Observe(d.Seconds())
}

func (m *Metrics) unpriced(portal string) {
	if m == nil {
		return
	}
	m.Unpriced.WithLabelValues(portal).Inc()
}
