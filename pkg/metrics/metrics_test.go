package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("scheduler", prometheus.NewRegistry())
		New("scheduler", prometheus.NewRegistry())
		New("scheduler", nil)
	})
}

func TestHelpers(t *testing.T) {
	m := New("scheduler", prometheus.NewRegistry())

	m.ObserveBooking("book", "conflict")
	m.ObserveBooking("book", "conflict")
	m.ObserveSweep("overdue", time.Now(), errors.New("db down"))
	m.AddOverdue(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Bookings.WithLabelValues("book", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRuns.WithLabelValues("overdue", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OverdueMarked))
}

func TestHelpers_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("book", "ok")
		m.ObserveTransition("cancel", "ok")
		m.ObserveIntent("reminder", "ok")
		m.ObserveSweep("reminder", time.Now(), nil)
		m.ObserveSkip("overdue", "stale")
		m.AddOverdue(1)
		m.AddReminders(1)
		m.ObserveOutbox("notification.reminder", "retry")
		m.ObserveOutboxBatch(time.Now())
		m.ObserveHTTP("GET", "/health", 200, time.Now())
	})
}

func TestObserveOutbox(t *testing.T) {
	m := New("scheduler", prometheus.NewRegistry())

	m.ObserveOutbox("notification.reminder", "retry")
	m.ObserveOutbox("notification.reminder", "retry")
	m.ObserveOutbox("notification.reminder", "processed")
	m.ObserveOutbox("notification.reminder", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues("notification.reminder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestObserveHTTP(t *testing.T) {
	m := New("scheduler", prometheus.NewRegistry())
	m.ObserveHTTP("POST", "/api/v1/appointments", 409, time.Now())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/api/v1/appointments", "409")))
}
