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

var errEmployeeNotFound = domain.NewError(domain.ErrNotFound, "employee not found")

var employeeColumns = []string{"id", "name", "email", "department", "position", "user_id", "admin_id", "created_at", "updated_at"}

type employeeRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Email      string         `db:"email"`
	Department string         `db:"department"`
	Position   string         `db:"position"`
	UserID     sql.NullString `db:"user_id"`
	AdminID    string         `db:"admin_id"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r employeeRow) toDomain() *domain.Employee {
	return &domain.Employee{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Department: r.Department,
		Position:   r.Position,
		UserID:     r.UserID.String,
		TenantID:   r.AdminID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// PostgresEmployeeRepository implements domain.EmployeeRepository using PostgreSQL
type PostgresEmployeeRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresEmployeeRepository creates a new employee repository
func NewPostgresEmployeeRepository(db *sqlx.DB, logger *slog.Logger) *PostgresEmployeeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEmployeeRepository{db: db, logger: logger}
}

// ListByTenant lists a tenant's employees ordered by name
func (r *PostgresEmployeeRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Employee, error) {
	query, args, err := psql.Select(employeeColumns...).
		From("employees").
		Where(sq.Eq{"admin_id": tenantID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list employees: %w", err)
	}

	var rows []employeeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list employees",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list employees: %w", translate(err))
	}

	out := make([]*domain.Employee, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PostgresEmployeeRepository) getOne(ctx context.Context, pred sq.Sqlizer) (*domain.Employee, error) {
	query, args, err := psql.Select(employeeColumns...).From("employees").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select employee: %w", err)
	}

	var row employeeRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errEmployeeNotFound
		}
		if mapped := translate(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return row.toDomain(), nil
}

// Get retrieves an employee inside a tenant
func (r *PostgresEmployeeRepository) Get(ctx context.Context, tenantID, id string) (*domain.Employee, error) {
	return r.getOne(ctx, sq.Eq{"id": id, "admin_id": tenantID})
}

// GetByUser retrieves the employee profile linked to an identity
func (r *PostgresEmployeeRepository) GetByUser(ctx context.Context, tenantID, userID string) (*domain.Employee, error) {
	return r.getOne(ctx, sq.Eq{"user_id": userID, "admin_id": tenantID})
}

// CreateFromIdentity promotes a registered, unlinked identity of the
// tenant into an employee profile. The identity row is locked for the
// duration of the transaction so it cannot be deleted between the lookup
// and the insert.
func (r *PostgresEmployeeRepository) CreateFromIdentity(ctx context.Context, in domain.NewEmployee) (*domain.Employee, error) {
	emp := &domain.Employee{
		ID:         in.ID,
		Department: in.Department,
		Position:   in.Position,
		TenantID:   in.TenantID,
	}

	err := database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		query, args, err := psql.Select("id", "username", "email").
			From("users").
			Where(sq.Eq{"email": in.Email, "admin_id": in.TenantID, "role": string(domain.RoleEmployee)}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build identity lookup: %w", err)
		}

		var identity struct {
			ID       string `db:"id"`
			Username string `db:"username"`
			Email    string `db:"email"`
		}
		if err := tx.GetContext(ctx, &identity, query, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrIdentityNotInScope
			}
			return fmt.Errorf("lookup identity: %w", translate(err))
		}

		query, args, err = psql.Select("1").From("employees").Where(sq.Eq{"user_id": identity.ID}).Limit(1).ToSql()
		if err != nil {
			return fmt.Errorf("build link check: %w", err)
		}
		var linked int
		switch err := tx.GetContext(ctx, &linked, query, args...); {
		case err == nil:
			return domain.ErrAlreadyEmployee
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check existing employee: %w", err)
		}

		emp.Name = identity.Username
		emp.Email = identity.Email
		emp.UserID = identity.ID

		query, args, err = psql.Insert("employees").
			Columns("id", "name", "email", "department", "position", "user_id", "admin_id").
			Values(emp.ID, emp.Name, emp.Email, emp.Department, emp.Position, emp.UserID, emp.TenantID).
			Suffix("RETURNING created_at, updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert employee: %w", err)
		}
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&emp.CreatedAt, &emp.UpdatedAt); err != nil {
			if mapped := translate(err); mapped != err {
				return mapped
			}
			return fmt.Errorf("insert employee: %w", err)
		}
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == nil {
			r.logger.Error("failed to create employee",
				slog.String("tenant_id", in.TenantID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}
	return emp, nil
}

// Update changes the admin-owned fields of an employee. Name, email and
// the identity link are immutable once created.
func (r *PostgresEmployeeRepository) Update(ctx context.Context, tenantID, id, department, position string) (*domain.Employee, error) {
	query, args, err := psql.Update("employees").
		Set("department", department).
		Set("position", position).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id, "admin_id": tenantID}).
		Suffix("RETURNING " + joinColumns(employeeColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update employee: %w", err)
	}

	var row employeeRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errEmployeeNotFound
		}
		if mapped := translate(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}
	return row.toDomain(), nil
}

// Delete removes an employee of the tenant; its tasks cascade
func (r *PostgresEmployeeRepository) Delete(ctx context.Context, tenantID, id string) error {
	query, args, err := psql.Delete("employees").Where(sq.Eq{"id": id, "admin_id": tenantID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete employee: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if mapped := translate(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return errEmployeeNotFound
	}
	return nil
}

// Count returns the number of employees in a tenant
func (r *PostgresEmployeeRepository) Count(ctx context.Context, tenantID string) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("employees").Where(sq.Eq{"admin_id": tenantID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count employees: %w", err)
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count employees: %w", translate(err))
	}
	return n, nil
}
