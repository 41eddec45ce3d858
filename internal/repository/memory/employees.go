package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

// EmployeeRepository implements domain.EmployeeRepository in memory
type EmployeeRepository struct {
	s *Store
}

// ListByTenant lists a tenant's employees ordered by name
func (r *EmployeeRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*domain.Employee{}
	for _, e := range r.s.employees {
		if e.TenantID == tenantID {
			cp := e.Employee
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Employee) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *EmployeeRepository) find(match func(*domain.Employee) bool) (*domain.Employee, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.employees {
		if match(&e.Employee) {
			cp := e.Employee
			return &cp, nil
		}
	}
	return nil, errEmployeeNotFound
}

// Get retrieves an employee inside a tenant
func (r *EmployeeRepository) Get(ctx context.Context, tenantID, id string) (*domain.Employee, error) {
	return r.find(func(e *domain.Employee) bool { return e.ID == id && e.TenantID == tenantID })
}

// GetByUser retrieves the employee profile linked to an identity
func (r *EmployeeRepository) GetByUser(ctx context.Context, tenantID, userID string) (*domain.Employee, error) {
	return r.find(func(e *domain.Employee) bool { return e.UserID == userID && e.TenantID == tenantID })
}

// CreateFromIdentity promotes a registered identity of the tenant
func (r *EmployeeRepository) CreateFromIdentity(ctx context.Context, in domain.NewEmployee) (*domain.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var identity *domain.Identity
	for _, u := range r.s.users {
		if u.Email == in.Email && u.Role() == domain.RoleEmployee && u.TenantID() == in.TenantID {
			identity = &u.Identity
			break
		}
	}
	if identity == nil {
		return nil, domain.ErrIdentityNotInScope
	}
	for _, e := range r.s.employees {
		if e.UserID == identity.ID {
			return nil, domain.ErrAlreadyEmployee
		}
		if e.Email == identity.Email {
			return nil, domain.ErrEmailTaken
		}
	}

	now := r.s.now()
	emp := domain.Employee{
		ID:         in.ID,
		Name:       identity.Username,
		Email:      identity.Email,
		Department: in.Department,
		Position:   in.Position,
		UserID:     identity.ID,
		TenantID:   in.TenantID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	r.s.employees[emp.ID] = &employeeRecord{Employee: emp, seq: r.s.next()}
	return &emp, nil
}

// Update changes department and position
func (r *EmployeeRepository) Update(ctx context.Context, tenantID, id, department, position string) (*domain.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.employees[id]
	if !ok || e.TenantID != tenantID {
		return nil, errEmployeeNotFound
	}
	e.Department = department
	e.Position = position
	e.UpdatedAt = r.s.now()
	cp := e.Employee
	return &cp, nil
}

// Delete removes an employee and its tasks
func (r *EmployeeRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.employees[id]
	if !ok || e.TenantID != tenantID {
		return errEmployeeNotFound
	}
	r.s.deleteEmployeeLocked(id)
	return nil
}

// Count returns the number of employees in a tenant
func (r *EmployeeRepository) Count(ctx context.Context, tenantID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.employees {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}
