package domain

import (
	"context"
	"time"
)

// Role is one of the two identity variants. It is derived from the
// identity's Binding and never stored independently of it.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ParseRole maps wire input to a Role. An empty value and the legacy
// "user" alias both mean employee.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "", "employee", "user":
		return RoleEmployee, nil
	default:
		return "", NewError(ErrInvalidInput, "role must be admin or employee")
	}
}

// Binding ties an identity to its tenant. The interface is sealed: only
// AdminBinding and EmployeeBinding implement it, so an identity carries
// either a tenant code or a tenant reference, never both.
type Binding interface {
	Role() Role
	binding()
}

// AdminBinding marks an identity as the root of its own tenant.
type AdminBinding struct {
	Code string // tenant join code handed out to employees
}

func (AdminBinding) Role() Role { return RoleAdmin }
func (AdminBinding) binding()   {}

// EmployeeBinding marks an identity as a member of the tenant owned by AdminID.
type EmployeeBinding struct {
	AdminID string
}

func (EmployeeBinding) Role() Role { return RoleEmployee }
func (EmployeeBinding) binding()   {}

// Identity represents a registered user account
type Identity struct {
	ID           string // UUID
	Username     string // Unique username
	Email        string // Unique email address
	PasswordHash string // Bcrypt hashed password (never returned in API)
	Binding      Binding
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role returns the identity's role as implied by its binding
func (i *Identity) Role() Role {
	if i.Binding == nil {
		return ""
	}
	return i.Binding.Role()
}

// TenantID returns the id of the admin that owns this identity's tenant.
// For an admin that is its own id.
func (i *Identity) TenantID() string {
	switch b := i.Binding.(type) {
	case AdminBinding:
		return i.ID
	case EmployeeBinding:
		return b.AdminID
	default:
		return ""
	}
}

// TenantCode returns the join code for admins and "" for employees
func (i *Identity) TenantCode() string {
	if b, ok := i.Binding.(AdminBinding); ok {
		return b.Code
	}
	return ""
}

// TenantUser is an identity registered under an admin's code, as seen by that admin
type TenantUser struct {
	ID         string
	Username   string
	Email      string
	EmployeeID string // "" until the admin onboards the identity
	CreatedAt  time.Time
}

// Linked reports whether the identity has been promoted to an employee profile
func (u *TenantUser) Linked() bool {
	return u.EmployeeID != ""
}

// UserRepository defines data access for identities
type UserRepository interface {
	Create(ctx context.Context, identity *Identity) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByUsername(ctx context.Context, username string) (*Identity, error)
	GetAdminByCode(ctx context.Context, code string) (*Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	ListByTenant(ctx context.Context, adminID string) ([]*TenantUser, error)
	DeleteInTenant(ctx context.Context, adminID, id string) error
}
