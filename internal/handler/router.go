package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
	"github.com/aryan0dhankhar/tasktracker/internal/security/audit"
	"github.com/aryan0dhankhar/tasktracker/internal/security/middleware"
	"github.com/aryan0dhankhar/tasktracker/internal/security/ratelimit"
	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

// RouterDeps carries everything the HTTP surface is built from
type RouterDeps struct {
	Auth      *service.AuthService
	Employees *service.EmployeeService
	Tasks     *service.TaskService
	Dashboard *service.DashboardService

	Limiter       *ratelimit.Limiter
	LoginAttempts int
	Audit         *audit.Logger
	SecureCookie  bool
	Production    bool

	// Hub enables the /ws/tasks event stream when set
	Hub            *events.Hub
	AllowedOrigins []string

	// Checks are probed by /readyz
	Checks map[string]Check
	// Metrics is mounted at /metrics when set
	Metrics http.Handler

	Logger *slog.Logger
}

// NewRouter wires every route of the API and wraps them in the shared
// middleware stack
func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	auditLog := d.Audit
	if auditLog == nil {
		auditLog = audit.NewLogger(log)
	}
	limiter := d.Limiter
	if limiter == nil {
		// zero budget disables limiting
		limiter = ratelimit.NewLimiter(0, 0)
	}

	authH := NewAuthHandler(d.Auth, limiter, d.LoginAttempts, d.SecureCookie, auditLog, log)
	usersH := NewUserHandler(d.Auth, log)
	employeesH := NewEmployeeHandler(d.Employees, log)
	tasksH := NewTaskHandler(d.Tasks, log)
	dashboardH := NewDashboardHandler(d.Dashboard, log)
	healthH := NewHealthHandler(d.Checks, log)

	authenticate := middleware.Authenticate(d.Auth, log)
	rateLimit := middleware.RateLimit(limiter, log)
	auditWrites := middleware.Audit(auditLog)

	// authed: session -> per-tenant limit -> audit
	authed := func(h http.HandlerFunc) http.Handler {
		return authenticate(rateLimit(auditWrites(h)))
	}
	public := func(h http.HandlerFunc) http.Handler {
		return rateLimit(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/auth/register", public(authH.Register))
	mux.Handle("POST /api/auth/login", public(authH.Login))
	mux.Handle("POST /api/auth/logout", public(authH.Logout))
	mux.Handle("GET /api/auth/me", authed(authH.Me))
	mux.Handle("DELETE /api/auth/me", authed(authH.DeleteMe))
	mux.Handle("POST /api/auth/change-password", authed(authH.ChangePassword))

	mux.Handle("GET /api/users", authed(usersH.List))
	mux.Handle("DELETE /api/users/{id}", authed(usersH.Delete))

	mux.Handle("GET /api/employees", authed(employeesH.List))
	mux.Handle("POST /api/employees", authed(employeesH.Create))
	mux.Handle("GET /api/employees/{id}", authed(employeesH.Get))
	mux.Handle("PUT /api/employees/{id}", authed(employeesH.Update))
	mux.Handle("DELETE /api/employees/{id}", authed(employeesH.Delete))

	mux.Handle("GET /api/tasks", authed(tasksH.List))
	mux.Handle("POST /api/tasks", authed(tasksH.Create))
	mux.Handle("GET /api/tasks/{id}", authed(tasksH.Get))
	mux.Handle("PUT /api/tasks/{id}", authed(tasksH.Update))
	mux.Handle("PATCH /api/tasks/{id}/status", authed(tasksH.UpdateStatus))
	mux.Handle("DELETE /api/tasks/{id}", authed(tasksH.Delete))

	mux.Handle("GET /api/dashboard", authed(dashboardH.Get))

	if d.Hub != nil {
		// no audit wrapper: the upgrade needs the raw connection
		mux.Handle("GET /ws/tasks", authenticate(NewStreamHandler(d.Tasks, d.Hub, d.AllowedOrigins, log)))
	}

	mux.HandleFunc("GET /api/health", healthH.API)
	mux.HandleFunc("GET /healthz", healthH.Health)
	mux.HandleFunc("GET /readyz", healthH.Ready)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	mux.HandleFunc("/", NotFound)

	var h http.Handler = metrics.HTTPMetricsMiddleware(mux)
	h = middleware.ValidateJSONContentType(log)(h)
	h = middleware.SanitizeInputs(log)(h)
	h = middleware.Recover(log)(h)
	h = middleware.SecurityHeaders(d.Production)(h)
	return h
}
