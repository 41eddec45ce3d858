package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
)

var (
	errMissingTaskFields = domain.NewError(domain.ErrInvalidInput, "title, status, priority, and employee_id are required")
	errInvalidStatus     = domain.NewError(domain.ErrInvalidInput, "invalid status")
	errInvalidPriority   = domain.NewError(domain.ErrInvalidInput, "invalid priority")
	errMissingStatus     = domain.NewError(domain.ErrInvalidInput, "status is required")
)

// TaskInput is a create or full-update request from an admin
type TaskInput struct {
	Title       string
	Description *string
	Status      string
	Priority    string
	EmployeeID  string
	DueDate     *string
}

func (in TaskInput) toTask() (*domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	employeeID := strings.TrimSpace(in.EmployeeID)
	if title == "" || in.Status == "" || in.Priority == "" || employeeID == "" {
		return nil, errMissingTaskFields
	}
	status := domain.TaskStatus(in.Status)
	if !status.Valid() {
		return nil, errInvalidStatus
	}
	priority := domain.TaskPriority(in.Priority)
	if !priority.Valid() {
		return nil, errInvalidPriority
	}

	task := &domain.Task{
		Title:      title,
		Status:     status,
		Priority:   priority,
		EmployeeID: employeeID,
	}
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			task.Description = &d
		}
	}
	if in.DueDate != nil && strings.TrimSpace(*in.DueDate) != "" {
		due, err := domain.ParseDate(strings.TrimSpace(*in.DueDate))
		if err != nil {
			return nil, err
		}
		task.DueDate = &due
	}
	return task, nil
}

// TaskQuery holds the optional list filters
type TaskQuery struct {
	Status     string
	Priority   string
	EmployeeID string
}

// TaskService manages tasks inside a tenant
type TaskService struct {
	tasks       domain.TaskRepository
	employees   domain.EmployeeRepository
	gate        *security.Gate
	sink        EventSink
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewTaskService creates a new task service. sink may be nil.
func NewTaskService(
	tasks domain.TaskRepository,
	employees domain.EmployeeRepository,
	gate *security.Gate,
	sink EventSink,
	invalidator Invalidator,
	logger *slog.Logger,
) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		tasks:       tasks,
		employees:   employees,
		gate:        gate,
		sink:        sink,
		invalidator: invalidatorOrNoop(invalidator),
		logger:      logger,
		now:         time.Now,
	}
}

// List returns the caller's visible tasks, newest first. Employees only
// ever see their own tasks whatever filter they pass.
func (s *TaskService) List(ctx context.Context, p domain.Principal, q TaskQuery) ([]*domain.Task, error) {
	sub, err := resolveSubject(ctx, s.employees, p)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(sub, security.ActionTaskList, security.Resource{}); err != nil {
		return nil, err
	}

	filter := domain.TaskFilter{
		TenantID:   p.TenantID,
		EmployeeID: q.EmployeeID,
		Status:     domain.TaskStatus(q.Status),
		Priority:   domain.TaskPriority(q.Priority),
	}
	if security.ScopeFor(p.Role, security.ActionTaskList) == security.ScopeOwn {
		if sub.EmployeeID == "" || (q.EmployeeID != "" && q.EmployeeID != sub.EmployeeID) {
			return []*domain.Task{}, nil
		}
		filter.EmployeeID = sub.EmployeeID
	}
	return s.tasks.List(ctx, filter)
}

// Get returns one task. An employee asking for a task that is not its own
// is refused whether or not the task exists.
func (s *TaskService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Task, error) {
	sub, err := resolveSubject(ctx, s.employees, p)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.Get(ctx, p.TenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && !p.IsAdmin() {
			if denied := s.gate.Authorize(sub, security.ActionTaskRead, security.Resource{TenantID: p.TenantID}); denied != nil {
				return nil, denied
			}
		}
		return nil, err
	}
	if err := s.gate.Authorize(sub, security.ActionTaskRead, security.Resource{TenantID: task.TenantID, EmployeeID: task.EmployeeID}); err != nil {
		return nil, err
	}
	return task, nil
}

// WatchFilter returns a predicate selecting the task events of the caller's
// tenant that the caller may see: all of them for admins, those of their
// own employee record for employees. An employee onboarded after the watch
// started is resolved on the first event naming an employee. The predicate
// is not safe for concurrent use.
func (s *TaskService) WatchFilter(ctx context.Context, p domain.Principal) (func(events.TaskEvent) bool, error) {
	sub, err := resolveSubject(ctx, s.employees, p)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(sub, security.ActionTaskList, security.Resource{}); err != nil {
		return nil, err
	}
	if security.ScopeFor(p.Role, security.ActionTaskList) == security.ScopeTenant {
		return func(ev events.TaskEvent) bool { return ev.TenantID == p.TenantID }, nil
	}

	employeeID := sub.EmployeeID
	return func(ev events.TaskEvent) bool {
		if ev.TenantID != p.TenantID || ev.EmployeeID == "" {
			return false
		}
		if employeeID == "" {
			emp, err := s.employees.GetByUser(ctx, p.TenantID, p.UserID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					s.logger.Warn("failed to resolve watcher",
						slog.String("user_id", p.UserID),
						slog.String("error", err.Error()),
					)
				}
				return false
			}
			employeeID = emp.ID
		}
		return ev.EmployeeID == employeeID
	}, nil
}

// Create assigns a new task to an employee of the caller's tenant
func (s *TaskService) Create(ctx context.Context, p domain.Principal, in TaskInput) (*domain.Task, error) {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionTaskCreate, security.Resource{}); err != nil {
		return nil, err
	}
	task, err := in.toTask()
	if err != nil {
		return nil, err
	}
	task.ID = uuid.NewString()
	task.TenantID = p.TenantID

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, events.TaskCreated, p, task)
	s.logger.Info("task created",
		slog.String("tenant_id", task.TenantID),
		slog.String("task_id", task.ID),
		slog.String("employee_id", task.EmployeeID),
	)
	return task, nil
}

// Update replaces every mutable field of a task
func (s *TaskService) Update(ctx context.Context, p domain.Principal, id string, in TaskInput) (*domain.Task, error) {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionTaskUpdate, security.Resource{}); err != nil {
		return nil, err
	}
	task, err := in.toTask()
	if err != nil {
		return nil, err
	}
	task.ID = id
	task.TenantID = p.TenantID

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	s.afterWrite(ctx, events.TaskUpdated, p, task)
	return task, nil
}

// UpdateStatus moves a task to a new status. Admins may move any task of
// their tenant, employees only their own; any other id, existing or not,
// is Forbidden for an employee, as in Get.
func (s *TaskService) UpdateStatus(ctx context.Context, p domain.Principal, id, status string) (*domain.Task, error) {
	if status == "" {
		return nil, errMissingStatus
	}
	next := domain.TaskStatus(status)
	if !next.Valid() {
		return nil, errInvalidStatus
	}

	sub, err := resolveSubject(ctx, s.employees, p)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(sub, security.ActionTaskStatus, security.Resource{}); err != nil {
		return nil, err
	}

	scope := domain.TaskFilter{TenantID: p.TenantID}
	own := security.ScopeFor(p.Role, security.ActionTaskStatus) == security.ScopeOwn
	if own {
		if sub.EmployeeID == "" {
			return nil, s.gate.Authorize(sub, security.ActionTaskStatus, security.Resource{TenantID: p.TenantID})
		}
		scope.EmployeeID = sub.EmployeeID
	}

	task, err := s.tasks.UpdateStatus(ctx, scope, id, next)
	if err != nil {
		if own && errors.Is(err, domain.ErrNotFound) {
			// any task outside the caller's record, existing or not
			return nil, s.gate.Authorize(sub, security.ActionTaskStatus, security.Resource{TenantID: p.TenantID})
		}
		return nil, err
	}

	metrics.ObserveStatusChange(string(next), string(p.Role))
	s.afterWrite(ctx, events.TaskStatusChanged, p, task)
	return task, nil
}

// Delete removes a task of the caller's tenant
func (s *TaskService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionTaskDelete, security.Resource{}); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.afterWrite(ctx, events.TaskDeleted, p, &domain.Task{ID: id, TenantID: p.TenantID})
	s.logger.Info("task deleted",
		slog.String("tenant_id", p.TenantID),
		slog.String("task_id", id),
	)
	return nil
}

func (s *TaskService) afterWrite(ctx context.Context, kind string, p domain.Principal, task *domain.Task) {
	s.invalidator.Invalidate(ctx, task.TenantID)
	if s.sink == nil {
		return
	}
	ev := events.TaskEvent{
		Type:       kind,
		TaskID:     task.ID,
		TenantID:   task.TenantID,
		EmployeeID: task.EmployeeID,
		ActorID:    p.UserID,
		Status:     string(task.Status),
		Timestamp:  s.now().UTC(),
	}
	if !s.sink.Enqueue(ev) {
		s.logger.Warn("task event dropped",
			slog.String("type", kind),
			slog.String("task_id", task.ID),
		)
	}
}
