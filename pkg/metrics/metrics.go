package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Scheduling
	Bookings       *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	IntentsEmitted *prometheus.CounterVec

	// Sweeps
	SweepRuns     *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
	OverdueMarked prometheus.Counter
	RemindersSent prometheus.Counter
	SweepSkipped  *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg. A nil reg gets a
// private registry so repeated construction in tests never collides.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Bookings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking and reschedule attempts by operation and result",
		}, []string{"operation", "result"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Lifecycle transitions by trigger and result",
		}, []string{"trigger", "result"}),
		IntentsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_intents_total",
			Help:      "Notification intents handed to the dispatcher by kind and result",
		}, []string{"kind", "result"}),

		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Sweep executions by sweep and result",
		}, []string{"sweep", "result"}),
		SweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in a single sweep run",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"sweep"}),
		OverdueMarked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_marked_overdue_total",
			Help:      "Appointments moved to overdue by the sweep",
		}),
		RemindersSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_emitted_total",
			Help:      "Reminder intents emitted by the nightly sweep",
		}),
		SweepSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_skipped_total",
			Help:      "Appointments skipped by a sweep, by reason",
		}, []string{"sweep", "reason"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of outbox events that exhausted their retries",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) ObserveBooking(operation, result string) {
	if m == nil {
		return
	}
	m.Bookings.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ObserveTransition(trigger, result string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) ObserveIntent(kind, result string) {
	if m == nil {
		return
	}
	m.IntentsEmitted.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveSweep(sweep string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SweepRuns.WithLabelValues(sweep, result).Inc()
	m.SweepDuration.WithLabelValues(sweep).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveSkip(sweep, reason string) {
	if m == nil {
		return
	}
	m.SweepSkipped.WithLabelValues(sweep, reason).Inc()
}

func (m *Metrics) AddOverdue(n int) {
	if m == nil {
		return
	}
	m.OverdueMarked.Add(float64(n))
}

func (m *Metrics) AddReminders(n int) {
	if m == nil {
		return
	}
	m.RemindersSent.Add(float64(n))
}

// ObserveOutbox records one publish attempt outcome: "processed", "retry"
// or "failed".
func (m *Metrics) ObserveOutbox(eventType, outcome string) {
	if m == nil {
		return
	}
	switch outcome {
	case "processed":
		m.OutboxEventsProcessed.Inc()
	case "retry":
		m.OutboxRetries.WithLabelValues(eventType).Inc()
	case "failed":
		m.OutboxEventsFailed.Inc()
	}
}

func (m *Metrics) ObserveOutboxBatch(started time.Time) {
	if m == nil {
		return
	}
	m.OutboxProcessingLatency.Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveHTTP(method, path string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(time.Since(started).Seconds())
}
