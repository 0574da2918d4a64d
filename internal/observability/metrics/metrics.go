package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WizardMetrics exposes counters/histograms for the reservation flow.
type WizardMetrics struct {
	messagesTotal     *prometheus.CounterVec
	droppedTotal      prometheus.Counter
	bookingsTotal     *prometheus.CounterVec
	cacheErrorsTotal  *prometheus.CounterVec
	processingLatency *prometheus.HistogramVec
}

func NewWizardMetrics(reg prometheus.Registerer) *WizardMetrics {
	m := &WizardMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportbar",
			Subsystem: "wizard",
			Name:      "messages_total",
			Help:      "Inputs processed by the reservation wizard",
		}, []string{"step", "outcome"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sportbar",
			Subsystem: "wizard",
			Name:      "dropped_total",
			Help:      "Inputs dropped because the conversation was busy",
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportbar",
			Subsystem: "wizard",
			Name:      "bookings_completed_total",
			Help:      "Completed reservations",
		}, []string{"zone"}),
		cacheErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sportbar",
			Subsystem: "wizard",
			Name:      "cache_errors_total",
			Help:      "Cache operations that failed",
		}, []string{"op"}),
		processingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sportbar",
			Subsystem: "wizard",
			Name:      "processing_seconds",
			Help:      "Time to process one input, typing delay excluded",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.droppedTotal, m.bookingsTotal, m.cacheErrorsTotal, m.processingLatency)
	return m
}

// ObserveMessage counts an input handled at step. outcome is "advanced",
// "reprompted" or "ignored".
func (m *WizardMetrics) ObserveMessage(step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(step, outcome).Inc()
	m.processingLatency.WithLabelValues(step).Observe(elapsed.Seconds())
}

func (m *WizardMetrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

func (m *WizardMetrics) ObserveBooking(zone string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(zone).Inc()
}

func (m *WizardMetrics) ObserveCacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrorsTotal.WithLabelValues(op).Inc()
}
