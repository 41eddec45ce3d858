package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/tracing"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
)

const (
	topEmployeesLimit = 5
	recentTasksLimit  = 5
)

// AdminDashboard summarises a whole tenant
type AdminDashboard struct {
	domain.TaskStats
	TotalEmployees  int                        `json:"total_employees"`
	CompletionRate  float64                    `json:"completion_rate"`
	TasksByEmployee []domain.EmployeeTaskCount `json:"tasks_by_employee"`
}

// EmployeeDashboard summarises the caller's own tasks
type EmployeeDashboard struct {
	domain.TaskStats
	CompletionRate     float64        `json:"completion_rate"`
	EmployeeName       string         `json:"employee_name"`
	EmployeeEmail      string         `json:"employee_email"`
	EmployeeDepartment *string        `json:"employee_department"`
	RecentTasks        []*domain.Task `json:"recent_tasks"`
}

// CompletionRate is completed/total as a percentage with two decimals, or
// 0 for an empty set
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

// DashboardService aggregates task statistics. Results may be cached per
// caller; every task or employee write of a tenant drops that tenant's
// entries through Invalidate.
type DashboardService struct {
	tasks     domain.TaskRepository
	employees domain.EmployeeRepository
	gate      *security.Gate
	cache     Cache
	ttl       time.Duration
	logger    *slog.Logger
}

// NewDashboardService creates a dashboard service. A nil cache disables caching.
func NewDashboardService(
	tasks domain.TaskRepository,
	employees domain.EmployeeRepository,
	gate *security.Gate,
	cache Cache,
	ttl time.Duration,
	logger *slog.Logger,
) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DashboardService{
		tasks:     tasks,
		employees: employees,
		gate:      gate,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

func dashboardPrefix(tenantID string) string {
	return "dashboard:" + tenantID + ":"
}

// Get returns *AdminDashboard for admins and *EmployeeDashboard for employees
func (s *DashboardService) Get(ctx context.Context, p domain.Principal) (any, error) {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionDashboardRead, security.Resource{}); err != nil {
		return nil, err
	}

	key := dashboardPrefix(p.TenantID) + p.UserID
	if cached, ok := s.fromCache(ctx, key, p.Role); ok {
		return cached, nil
	}

	ctx, span := tracing.Start(ctx, "dashboard.compute", p.TenantID)
	defer span.End()

	var (
		out any
		err error
	)
	if p.IsAdmin() {
		out, err = s.admin(ctx, p)
	} else {
		out, err = s.employee(ctx, p)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.store(ctx, key, out)
	return out, nil
}

// Invalidate drops every cached dashboard of a tenant
func (s *DashboardService) Invalidate(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	s.cache.DeletePrefix(ctx, dashboardPrefix(tenantID))
}

func (s *DashboardService) admin(ctx context.Context, p domain.Principal) (*AdminDashboard, error) {
	stats, err := s.tasks.Stats(ctx, domain.TaskFilter{TenantID: p.TenantID})
	if err != nil {
		return nil, err
	}
	total, err := s.employees.Count(ctx, p.TenantID)
	if err != nil {
		return nil, err
	}
	top, err := s.tasks.TopEmployees(ctx, p.TenantID, topEmployeesLimit)
	if err != nil {
		return nil, err
	}
	if top == nil {
		top = []domain.EmployeeTaskCount{}
	}
	return &AdminDashboard{
		TaskStats:       *stats,
		TotalEmployees:  total,
		CompletionRate:  CompletionRate(stats.Completed, stats.Total),
		TasksByEmployee: top,
	}, nil
}

func (s *DashboardService) employee(ctx context.Context, p domain.Principal) (*EmployeeDashboard, error) {
	emp, err := s.employees.GetByUser(ctx, p.TenantID, p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// registered but not onboarded yet
			return &EmployeeDashboard{
				EmployeeName:  p.Username,
				EmployeeEmail: p.Email,
				RecentTasks:   []*domain.Task{},
			}, nil
		}
		return nil, err
	}

	scope := domain.TaskFilter{TenantID: p.TenantID, EmployeeID: emp.ID}
	stats, err := s.tasks.Stats(ctx, scope)
	if err != nil {
		return nil, err
	}
	scope.Limit = recentTasksLimit
	recent, err := s.tasks.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	department := emp.Department
	return &EmployeeDashboard{
		TaskStats:          *stats,
		CompletionRate:     CompletionRate(stats.Completed, stats.Total),
		EmployeeName:       emp.Name,
		EmployeeEmail:      emp.Email,
		EmployeeDepartment: &department,
		RecentTasks:        recent,
	}, nil
}

func (s *DashboardService) fromCache(ctx context.Context, key string, role domain.Role) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok := s.cache.Get(ctx, key)
	metrics.ObserveDashboardCache(ok)
	if !ok {
		return nil, false
	}

	var out any
	if role == domain.RoleAdmin {
		out = &AdminDashboard{}
	} else {
		out = &EmployeeDashboard{}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("discarding unreadable dashboard cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return out, true
}

func (s *DashboardService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode dashboard", slog.String("error", err.Error()))
		return
	}
	s.cache.Set(ctx, key, raw, s.ttl)
}
