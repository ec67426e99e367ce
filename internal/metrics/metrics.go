package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hostelgate"

// Metrics groups the application collectors. Every method is safe on a nil
// receiver so components can run without metrics in tests.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	registrations    *prometheus.CounterVec
	registrationSkip prometheus.Counter
	pinAttempts      *prometheus.CounterVec
	tokenRefreshes   prometheus.Counter
	workerTasks      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_submissions_total",
			Help:      "Registration API submissions by role and outcome.",
		}, []string{"role", "outcome"}),
		registrationSkip: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_runs_skipped_total",
			Help:      "Registration runs skipped because another run held the reservation.",
		}),
		pinAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pin_provision_attempts_total",
			Help:      "Per-lock PIN creation attempts by outcome.",
		}, []string{"outcome"}),
		tokenRefreshes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_provider_token_refreshes_total",
			Help:      "Lock provider access token exchanges.",
		}),
		workerTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Background tasks by outcome (completed, failed, dropped).",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) RegistrationSubmitted(role, outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) RegistrationSkipped() {
	if m == nil {
		return
	}
	m.registrationSkip.Inc()
}

func (m *Metrics) PinAttempt(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.pinAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenRefreshed() {
	if m == nil {
		return
	}
	m.tokenRefreshes.Inc()
}

func (m *Metrics) WorkerTask(outcome string) {
	if m == nil {
		return
	}
	m.workerTasks.WithLabelValues(outcome).Inc()
}
