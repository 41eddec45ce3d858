package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
)

var (
	errMissingEmployeeFields = domain.NewError(domain.ErrInvalidInput, "email, department, and position are required")
	errMissingEmployeeUpdate = domain.NewError(domain.ErrInvalidInput, "department and position are required")
)

// NewEmployeeInput is an onboarding request from an admin
type NewEmployeeInput struct {
	Email      string
	Department string
	Position   string
}

// EmployeeService manages the employee roster of a tenant
type EmployeeService struct {
	employees   domain.EmployeeRepository
	gate        *security.Gate
	invalidator Invalidator
	logger      *slog.Logger
}

// NewEmployeeService creates a new employee service
func NewEmployeeService(employees domain.EmployeeRepository, gate *security.Gate, invalidator Invalidator, logger *slog.Logger) *EmployeeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmployeeService{
		employees:   employees,
		gate:        gate,
		invalidator: invalidatorOrNoop(invalidator),
		logger:      logger,
	}
}

// List returns the tenant roster for admins and the caller's own record
// (or nothing, before onboarding) for employees
func (s *EmployeeService) List(ctx context.Context, p domain.Principal) ([]*domain.Employee, error) {
	sub, err := resolveSubject(ctx, s.employees, p)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(sub, security.ActionEmployeeList, security.Resource{}); err != nil {
		return nil, err
	}
	if security.ScopeFor(p.Role, security.ActionEmployeeList) == security.ScopeTenant {
		return s.employees.ListByTenant(ctx, p.TenantID)
	}
	if sub.EmployeeID == "" {
		return []*domain.Employee{}, nil
	}
	own, err := s.employees.Get(ctx, p.TenantID, sub.EmployeeID)
	if err != nil {
		return nil, err
	}
	return []*domain.Employee{own}, nil
}

// Get returns one employee. Employees may only read their own record.
func (s *EmployeeService) Get(ctx context.Context, p domain.Principal, id string) (*domain.Employee, error) {
	sub, err := resolveSubject(ctx, s.employees, p)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		// an employee's own record is the only one it may see, so the
		// check needs no lookup and reveals nothing about other ids
		if err := s.gate.Authorize(sub, security.ActionEmployeeRead, security.Resource{TenantID: p.TenantID, EmployeeID: id}); err != nil {
			return nil, err
		}
	}
	emp, err := s.employees.Get(ctx, p.TenantID, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(sub, security.ActionEmployeeRead, security.Resource{TenantID: emp.TenantID, EmployeeID: emp.ID}); err != nil {
		return nil, err
	}
	return emp, nil
}

// Create onboards a registered identity of the caller's tenant, found by email
func (s *EmployeeService) Create(ctx context.Context, p domain.Principal, in NewEmployeeInput) (*domain.Employee, error) {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionEmployeeCreate, security.Resource{}); err != nil {
		return nil, err
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Department = strings.TrimSpace(in.Department)
	in.Position = strings.TrimSpace(in.Position)
	if in.Email == "" || in.Department == "" || in.Position == "" {
		return nil, errMissingEmployeeFields
	}

	emp, err := s.employees.CreateFromIdentity(ctx, domain.NewEmployee{
		ID:         uuid.NewString(),
		TenantID:   p.TenantID,
		Email:      in.Email,
		Department: in.Department,
		Position:   in.Position,
	})
	if err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(ctx, p.TenantID)
	s.logger.Info("employee created",
		slog.String("tenant_id", p.TenantID),
		slog.String("employee_id", emp.ID),
		slog.String("user_id", emp.UserID),
	)
	return emp, nil
}

// Update changes department and position
func (s *EmployeeService) Update(ctx context.Context, p domain.Principal, id, department, position string) (*domain.Employee, error) {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionEmployeeUpdate, security.Resource{}); err != nil {
		return nil, err
	}
	department = strings.TrimSpace(department)
	position = strings.TrimSpace(position)
	if department == "" || position == "" {
		return nil, errMissingEmployeeUpdate
	}
	emp, err := s.employees.Update(ctx, p.TenantID, id, department, position)
	if err != nil {
		return nil, err
	}
	s.invalidator.Invalidate(ctx, p.TenantID)
	return emp, nil
}

// Delete removes an employee and, through the store's cascade, its tasks
func (s *EmployeeService) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionEmployeeDelete, security.Resource{}); err != nil {
		return err
	}
	if err := s.employees.Delete(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, p.TenantID)
	s.logger.Info("employee deleted",
		slog.String("tenant_id", p.TenantID),
		slog.String("employee_id", id),
	)
	return nil
}

