package domain

import (
	"context"
	"time"
)

// TaskStatus is the progress state of a task
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TaskPriority is the urgency of a task
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Valid reports whether p is one of the known priorities
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work assigned by an admin to one of its employees
type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	EmployeeID   string       `json:"employee_id"`
	EmployeeName string       `json:"employee_name"` // joined from the owning employee on reads
	TenantID     string       `json:"admin_id"`
	DueDate      *Date        `json:"due_date"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TaskFilter scopes a task query. TenantID is mandatory; the remaining
// fields narrow the result further.
type TaskFilter struct {
	TenantID   string
	EmployeeID string
	Status     TaskStatus
	Priority   TaskPriority
	Limit      uint64
}

// TaskStats holds the counters shown on the dashboard
type TaskStats struct {
	Total          int `db:"total_tasks" json:"total_tasks"`
	Completed      int `db:"completed_tasks" json:"completed_tasks"`
	InProgress     int `db:"in_progress_tasks" json:"in_progress_tasks"`
	Pending        int `db:"pending_tasks" json:"pending_tasks"`
	HighPriority   int `db:"high_priority_tasks" json:"high_priority_tasks"`
	MediumPriority int `db:"medium_priority_tasks" json:"medium_priority_tasks"`
	LowPriority    int `db:"low_priority_tasks" json:"low_priority_tasks"`
}

// EmployeeTaskCount is one row of the per-employee dashboard breakdown
type EmployeeTaskCount struct {
	EmployeeID string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	TaskCount  int    `db:"task_count" json:"task_count"`
	Completed  int    `db:"completed" json:"completed"`
}

// TaskRepository defines tenant-scoped data access for tasks
type TaskRepository interface {
	List(ctx context.Context, filter TaskFilter) ([]*Task, error)
	Get(ctx context.Context, tenantID, id string) (*Task, error)
	// Create inserts the task only if its employee belongs to task.TenantID.
	Create(ctx context.Context, task *Task) error
	Update(ctx context.Context, task *Task) error
	// UpdateStatus changes the status of a task matching the filter's
	// tenant (and employee, when set). It returns ErrNotFound when no row matches.
	UpdateStatus(ctx context.Context, scope TaskFilter, id string, status TaskStatus) (*Task, error)
	Delete(ctx context.Context, tenantID, id string) error
	Stats(ctx context.Context, scope TaskFilter) (*TaskStats, error)
	TopEmployees(ctx context.Context, tenantID string, limit uint64) ([]EmployeeTaskCount, error)
}
