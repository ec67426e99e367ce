package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsCount(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RegistrationSubmitted("PRIMARY", "sent")
	m.RegistrationSubmitted("SECONDARY", "error")
	m.RegistrationSubmitted("SECONDARY", "error")
	m.RegistrationSkipped()
	m.PinAttempt(true)
	m.PinAttempt(false)
	m.TokenRefreshed()
	m.WorkerTask("dropped")
	m.ObserveHTTP("GET", "/health", "200", 0.01)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("PRIMARY", "sent")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrations.WithLabelValues("SECONDARY", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrationSkip))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pinAttempts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenRefreshes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workerTasks.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RegistrationSubmitted("PRIMARY", "sent")
		m.RegistrationSkipped()
		m.PinAttempt(true)
		m.TokenRefreshed()
		m.WorkerTask("completed")
		m.ObserveHTTP("GET", "/", "200", 0)
	})
}
