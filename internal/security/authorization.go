package security

import (
	"log/slog"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
)

// Action identifies what operation is being performed
type Action string

const (
	ActionEmployeeList   Action = "employee.list"
	ActionEmployeeRead   Action = "employee.read"
	ActionEmployeeCreate Action = "employee.create"
	ActionEmployeeUpdate Action = "employee.update"
	ActionEmployeeDelete Action = "employee.delete"
	ActionTaskList       Action = "task.list"
	ActionTaskRead       Action = "task.read"
	ActionTaskCreate     Action = "task.create"
	ActionTaskUpdate     Action = "task.update"
	ActionTaskDelete     Action = "task.delete"
	ActionTaskStatus     Action = "task.status"
	ActionDashboardRead  Action = "dashboard.read"
	ActionUserList       Action = "user.list"
	ActionUserDelete     Action = "user.delete"
)

// Scope is how far a role's permission on an action reaches
type Scope int

const (
	ScopeNone   Scope = iota // denied
	ScopeOwn                 // only resources on the caller's own employee record
	ScopeTenant              // anything inside the caller's tenant
)

type grant struct {
	admin    Scope
	employee Scope
}

// Policy is the authoritative permission table
var Policy = map[Action]grant{
	ActionEmployeeList:   {admin: ScopeTenant, employee: ScopeOwn},
	ActionEmployeeRead:   {admin: ScopeTenant, employee: ScopeOwn},
	ActionEmployeeCreate: {admin: ScopeTenant, employee: ScopeNone},
	ActionEmployeeUpdate: {admin: ScopeTenant, employee: ScopeNone},
	ActionEmployeeDelete: {admin: ScopeTenant, employee: ScopeNone},
	ActionTaskList:       {admin: ScopeTenant, employee: ScopeOwn},
	ActionTaskRead:       {admin: ScopeTenant, employee: ScopeOwn},
	ActionTaskCreate:     {admin: ScopeTenant, employee: ScopeNone},
	ActionTaskUpdate:     {admin: ScopeTenant, employee: ScopeNone},
	ActionTaskDelete:     {admin: ScopeTenant, employee: ScopeNone},
	ActionTaskStatus:     {admin: ScopeTenant, employee: ScopeOwn},
	ActionDashboardRead:  {admin: ScopeTenant, employee: ScopeOwn},
	ActionUserList:       {admin: ScopeTenant, employee: ScopeNone},
	ActionUserDelete:     {admin: ScopeTenant, employee: ScopeNone},
}

// Subject is the caller as seen by the gate
type Subject struct {
	domain.Principal
	EmployeeID string // the caller's linked employee record, "" if not onboarded
}

// Resource describes the object an action targets. The zero value means
// the action targets a collection, in which case only the role is checked.
type Resource struct {
	TenantID   string
	EmployeeID string // employee the resource is, or belongs to
}

func (r Resource) isCollection() bool {
	return r.TenantID == "" && r.EmployeeID == ""
}

// Gate evaluates the permission table. It holds no state besides its logger.
type Gate struct {
	logger *slog.Logger
}

// NewGate creates a new authorization gate
func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// ScopeFor returns the scope a role holds on an action
func ScopeFor(role domain.Role, action Action) Scope {
	g, ok := Policy[action]
	if !ok {
		return ScopeNone
	}
	switch role {
	case domain.RoleAdmin:
		return g.admin
	case domain.RoleEmployee:
		return g.employee
	default:
		return ScopeNone
	}
}

// Authorize returns nil when sub may perform action on res, otherwise a
// Forbidden error.
func (g *Gate) Authorize(sub Subject, action Action, res Resource) error {
	scope := ScopeFor(sub.Role, action)
	if scope == ScopeNone {
		return g.deny(sub, action, res, "role not permitted")
	}
	if res.isCollection() {
		return nil
	}
	if res.TenantID != sub.TenantID {
		return g.deny(sub, action, res, "cross-tenant access")
	}
	if scope == ScopeOwn && (sub.EmployeeID == "" || res.EmployeeID != sub.EmployeeID) {
		return g.deny(sub, action, res, "not the caller's own record")
	}
	return nil
}

func (g *Gate) deny(sub Subject, action Action, res Resource, reason string) error {
	g.logger.Warn("permission denied",
		slog.String("user_id", sub.UserID),
		slog.String("role", string(sub.Role)),
		slog.String("action", string(action)),
		slog.String("tenant_id", sub.TenantID),
		slog.String("resource_tenant", res.TenantID),
		slog.String("resource_employee", res.EmployeeID),
		slog.String("reason", reason),
	)
	metrics.ObserveDenied(string(action), string(sub.Role))
	if sub.Role == domain.RoleAdmin {
		return domain.NewError(domain.ErrForbidden, "access denied")
	}
	switch action {
	case ActionTaskStatus:
		return domain.NewError(domain.ErrForbidden, "you can only update your own tasks")
	case ActionEmployeeCreate, ActionEmployeeUpdate, ActionEmployeeDelete,
		ActionTaskCreate, ActionTaskUpdate, ActionTaskDelete, ActionUserList, ActionUserDelete:
		return domain.NewError(domain.ErrForbidden, "admin access required")
	default:
		return domain.NewError(domain.ErrForbidden, "access denied")
	}
}
