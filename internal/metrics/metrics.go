// Package metrics collects and exposes Prometheus metrics for the booking
// workflow and email delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the workflow layers record against.
type Recorder interface {
	RecordBookingSubmitted()
	RecordBookingConfirmed()
	RecordEmailSent(template string)
	RecordEmailFailed(template string)
	RecordRewriteApplied(count int)
}

type Collector struct {
	bookingsSubmitted prometheus.Counter
	bookingsConfirmed prometheus.Counter
	emailsSent        *prometheus.CounterVec
	emailsFailed      *prometheus.CounterVec
	rewritesApplied   prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookingsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lectoria_bookings_submitted_total",
			Help: "Booking requests submitted through the order form.",
		}),
		bookingsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lectoria_bookings_confirmed_total",
			Help: "Booking requests confirmed via emailed token.",
		}),
		emailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectoria_emails_sent_total",
			Help: "Emails delivered, by template.",
		}, []string{"template"}),
		emailsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectoria_emails_failed_total",
			Help: "Email deliveries that failed, by template.",
		}, []string{"template"}),
		rewritesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lectoria_rewrites_applied_total",
			Help: "Lecture descriptions replaced by the rewrite job.",
		}),
	}

	reg.MustRegister(
		c.bookingsSubmitted,
		c.bookingsConfirmed,
		c.emailsSent,
		c.emailsFailed,
		c.rewritesApplied,
	)

	return c
}

func (c *Collector) RecordBookingSubmitted() {
	c.bookingsSubmitted.Inc()
}

func (c *Collector) RecordBookingConfirmed() {
	c.bookingsConfirmed.Inc()
}

func (c *Collector) RecordEmailSent(template string) {
	c.emailsSent.WithLabelValues(template).Inc()
}

func (c *Collector) RecordEmailFailed(template string) {
	c.emailsFailed.WithLabelValues(template).Inc()
}

func (c *Collector) RecordRewriteApplied(count int) {
	c.rewritesApplied.Add(float64(count))
}

// Handler returns the Prometheus scrape handler for the registry.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all recordings. Used in tests and when metrics are disabled.
type Nop struct{}

func (Nop) RecordBookingSubmitted()  {}
func (Nop) RecordBookingConfirmed()  {}
func (Nop) RecordEmailSent(string)   {}
func (Nop) RecordEmailFailed(string) {}
func (Nop) RecordRewriteApplied(int) {}
