package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/pkg/database"
)

var errTaskNotFound = domain.NewError(domain.ErrNotFound, "task not found")

var taskColumns = []string{
	"t.id", "t.title", "t.description", "t.status", "t.priority", "t.employee_id",
	"e.name AS employee_name", "t.admin_id", "t.due_date", "t.created_at", "t.updated_at",
}

// createTaskQuery inserts a task only when its employee is part of the
// tenant. No row comes back otherwise.
const createTaskQuery = `WITH owner AS (
	SELECT id, admin_id, name FROM employees WHERE id = $6 AND admin_id = $7
), ins AS (
	INSERT INTO tasks (id, title, description, status, priority, employee_id, admin_id, due_date)
	SELECT $1::uuid, $2::text, $3::text, $4::text, $5::text, owner.id, owner.admin_id, $8::date FROM owner
	RETURNING created_at, updated_at
)
SELECT ins.created_at, ins.updated_at, owner.name FROM ins, owner`

type taskRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Description  sql.NullString `db:"description"`
	Status       string         `db:"status"`
	Priority     string         `db:"priority"`
	EmployeeID   string         `db:"employee_id"`
	EmployeeName string         `db:"employee_name"`
	AdminID      string         `db:"admin_id"`
	DueDate      sql.NullTime   `db:"due_date"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r taskRow) toDomain() *domain.Task {
	t := &domain.Task{
		ID:           r.ID,
		Title:        r.Title,
		Status:       domain.TaskStatus(r.Status),
		Priority:     domain.TaskPriority(r.Priority),
		EmployeeID:   r.EmployeeID,
		EmployeeName: r.EmployeeName,
		TenantID:     r.AdminID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Description.Valid {
		d := r.Description.String
		t.Description = &d
	}
	if r.DueDate.Valid {
		t.DueDate = &domain.Date{Time: r.DueDate.Time}
	}
	return t
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableDate(d *domain.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL
type PostgresTaskRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresTaskRepository creates a new task repository
func NewPostgresTaskRepository(db *sqlx.DB, logger *slog.Logger) *PostgresTaskRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskRepository{db: db, logger: logger}
}

func scopeWhere(f domain.TaskFilter) sq.Eq {
	where := sq.Eq{"t.admin_id": f.TenantID}
	if f.EmployeeID != "" {
		where["t.employee_id"] = f.EmployeeID
	}
	if f.Status != "" {
		where["t.status"] = string(f.Status)
	}
	if f.Priority != "" {
		where["t.priority"] = string(f.Priority)
	}
	return where
}

func selectTasks() sq.SelectBuilder {
	return psql.Select(taskColumns...).
		From("tasks t").
		Join("employees e ON e.id = t.employee_id")
}

// List returns the tenant's tasks matching the filter, newest first
func (r *PostgresTaskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	b := selectTasks().Where(scopeWhere(filter)).OrderBy("t.created_at DESC")
	if filter.Limit > 0 {
		b = b.Limit(filter.Limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		if mapped := translate(err); mapped != err {
			// a malformed employee filter matches nothing
			if errors.Is(mapped, domain.ErrNotFound) {
				return []*domain.Task{}, nil
			}
			return nil, mapped
		}
		r.logger.Error("failed to list tasks",
			slog.String("tenant_id", filter.TenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	tasks := make([]*domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toDomain())
	}
	return tasks, nil
}

// Get retrieves a task inside a tenant
func (r *PostgresTaskRepository) Get(ctx context.Context, tenantID, id string) (*domain.Task, error) {
	query, args, err := selectTasks().Where(sq.Eq{"t.id": id, "t.admin_id": tenantID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get task: %w", err)
	}

	var row taskRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errTaskNotFound
		}
		if mapped := translate(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return row.toDomain(), nil
}

// Create inserts the task. It fails with ErrForeignEmployee when the
// assignee is not an employee of task.TenantID.
func (r *PostgresTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	err := r.db.QueryRowxContext(ctx, createTaskQuery,
		task.ID, task.Title, nullableString(task.Description), string(task.Status), string(task.Priority),
		task.EmployeeID, task.TenantID, nullableDate(task.DueDate),
	).Scan(&task.CreatedAt, &task.UpdatedAt, &task.EmployeeName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrForeignEmployee
		}
		mapped := translate(err)
		if errors.Is(mapped, domain.ErrNotFound) {
			// malformed employee id
			return domain.ErrForeignEmployee
		}
		if mapped != err {
			return mapped
		}
		r.logger.Error("failed to create task",
			slog.String("tenant_id", task.TenantID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a task. A reassignment must stay
// inside the tenant.
func (r *PostgresTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	return database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		query, args, err := psql.Select("id").
			From("tasks").
			Where(sq.Eq{"id": task.ID, "admin_id": task.TenantID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock task: %w", err)
		}
		var id string
		if err := tx.GetContext(ctx, &id, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errTaskNotFound
			}
			if mapped := translate(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("lock task: %w", err)
		}

		query, args, err = psql.Select("name").
			From("employees").
			Where(sq.Eq{"id": task.EmployeeID, "admin_id": task.TenantID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build employee check: %w", err)
		}
		if err := tx.GetContext(ctx, &task.EmployeeName, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) || errors.Is(translate(err), domain.ErrNotFound) {
				return domain.ErrForeignEmployee
			}
			return fmt.Errorf("check employee: %w", err)
		}

		query, args, err = psql.Update("tasks").
			Set("title", task.Title).
			Set("description", nullableString(task.Description)).
			Set("status", string(task.Status)).
			Set("priority", string(task.Priority)).
			Set("employee_id", task.EmployeeID).
			Set("due_date", nullableDate(task.DueDate)).
			Set("updated_at", sq.Expr("now()")).
			Where(sq.Eq{"id": task.ID, "admin_id": task.TenantID}).
			Suffix("RETURNING created_at, updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build update task: %w", err)
		}
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
			if mapped := translate(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
}

// UpdateStatus changes only the status of a task within scope
func (r *PostgresTaskRepository) UpdateStatus(ctx context.Context, scope domain.TaskFilter, id string, status domain.TaskStatus) (*domain.Task, error) {
	where := sq.Eq{"id": id, "admin_id": scope.TenantID}
	if scope.EmployeeID != "" {
		where["employee_id"] = scope.EmployeeID
	}
	query, args, err := psql.Update("tasks").
		Set("status", string(status)).
		Set("updated_at", sq.Expr("now()")).
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update status: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if mapped := translate(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return nil, errTaskNotFound
	}
	return r.Get(ctx, scope.TenantID, id)
}

// Delete removes a task of the tenant
func (r *PostgresTaskRepository) Delete(ctx context.Context, tenantID, id string) error {
	query, args, err := psql.Delete("tasks").Where(sq.Eq{"id": id, "admin_id": tenantID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete task: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if mapped := translate(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return errTaskNotFound
	}
	return nil
}

// Stats aggregates task counters for the tenant, or for one employee when
// scope.EmployeeID is set
func (r *PostgresTaskRepository) Stats(ctx context.Context, scope domain.TaskFilter) (*domain.TaskStats, error) {
	where := sq.Eq{"admin_id": scope.TenantID}
	if scope.EmployeeID != "" {
		where["employee_id"] = scope.EmployeeID
	}
	query, args, err := psql.Select(
		"COUNT(*) AS total_tasks",
		countWhen("status", domain.StatusCompleted, "completed_tasks"),
		countWhen("status", domain.StatusInProgress, "in_progress_tasks"),
		countWhen("status", domain.StatusPending, "pending_tasks"),
		countWhen("priority", domain.PriorityHigh, "high_priority_tasks"),
		countWhen("priority", domain.PriorityMedium, "medium_priority_tasks"),
		countWhen("priority", domain.PriorityLow, "low_priority_tasks"),
	).From("tasks").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task stats: %w", err)
	}

	var stats domain.TaskStats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		r.logger.Error("failed to compute task stats",
			slog.String("tenant_id", scope.TenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to compute task stats: %w", translate(err))
	}
	return &stats, nil
}

func countWhen[T ~string](column string, value T, alias string) string {
	return fmt.Sprintf("COALESCE(SUM(CASE WHEN %s = '%s' THEN 1 ELSE 0 END), 0) AS %s", column, string(value), alias)
}

// TopEmployees returns the tenant's employees with the most tasks
func (r *PostgresTaskRepository) TopEmployees(ctx context.Context, tenantID string, limit uint64) ([]domain.EmployeeTaskCount, error) {
	query, args, err := psql.Select(
		"e.id", "e.name", "COUNT(t.id) AS task_count",
		countWhen("t.status", domain.StatusCompleted, "completed"),
	).
		From("employees e").
		LeftJoin("tasks t ON t.employee_id = e.id").
		Where(sq.Eq{"e.admin_id": tenantID}).
		GroupBy("e.id", "e.name").
		OrderBy("task_count DESC", "e.name").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top employees: %w", err)
	}

	out := []domain.EmployeeTaskCount{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list top employees: %w", translate(err))
	}
	return out, nil
}
