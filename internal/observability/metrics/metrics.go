package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tasktracker_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_auth_attempts_total",
		Help: "Registration and login attempts by outcome",
	}, []string{"kind", "result"})

	accessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_access_denied_total",
		Help: "Requests rejected by the authorization gate",
	}, []string{"action", "role"})

	taskStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_task_status_changes_total",
		Help: "Task status updates by new status and caller role",
	}, []string{"status", "role"})

	tenantCodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tasktracker_tenant_code_collisions_total",
		Help: "Minted admin codes that collided with an existing one",
	})

	dashboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_dashboard_cache_total",
		Help: "Dashboard cache lookups by result",
	}, []string{"result"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasktracker_task_events_total",
		Help: "Task events handed to the broker by result",
	}, []string{"result"})

	eventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tasktracker_task_event_queue_depth",
		Help: "Task events waiting to be published",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveAuth counts a register or login attempt
func ObserveAuth(kind, result string) {
	authAttempts.WithLabelValues(kind, result).Inc()
}

// ObserveDenied counts a policy denial
func ObserveDenied(action, role string) {
	accessDenied.WithLabelValues(action, role).Inc()
}

// ObserveStatusChange counts a task status update
func ObserveStatusChange(status, role string) {
	taskStatusChanges.WithLabelValues(status, role).Inc()
}

// ObserveCodeCollision counts an admin code that had to be re-minted
func ObserveCodeCollision() {
	tenantCodeCollisions.Inc()
}

// ObserveDashboardCache counts a cache hit or miss
func ObserveDashboardCache(hit bool) {
	if hit {
		dashboardCache.WithLabelValues("hit").Inc()
		return
	}
	dashboardCache.WithLabelValues("miss").Inc()
}

// ObserveEvent counts a publish outcome: sent, failed, dropped or rejected
func ObserveEvent(result string) {
	eventsPublished.WithLabelValues(result).Inc()
}

// SetEventQueueDepth sets the event backlog gauge
func SetEventQueueDepth(n int) {
	if n < 0 {
		n = 0
	}
	eventQueueDepth.Set(float64(n))
}
