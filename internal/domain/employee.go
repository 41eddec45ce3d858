package domain

import (
	"context"
	"time"
)

// Employee is the admin-managed profile of a registered identity
type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`  // copied from the identity's username at creation
	Email      string    `json:"email"` // copied from the identity at creation
	Department string    `json:"department"`
	Position   string    `json:"position"`
	UserID     string    `json:"user_id,omitempty"`
	TenantID   string    `json:"admin_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewEmployee describes an onboarding request: the registered identity is
// looked up by email inside the acting admin's tenant.
type NewEmployee struct {
	ID         string
	TenantID   string
	Email      string
	Department string
	Position   string
}

// EmployeeRepository defines tenant-scoped data access for employees.
// Every method takes the tenant it operates in.
type EmployeeRepository interface {
	ListByTenant(ctx context.Context, tenantID string) ([]*Employee, error)
	Get(ctx context.Context, tenantID, id string) (*Employee, error)
	GetByUser(ctx context.Context, tenantID, userID string) (*Employee, error)
	CreateFromIdentity(ctx context.Context, in NewEmployee) (*Employee, error)
	Update(ctx context.Context, tenantID, id, department, position string) (*Employee, error)
	Delete(ctx context.Context, tenantID, id string) error
	Count(ctx context.Context, tenantID string) (int, error)
}
