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
)

var errUserNotFound = domain.NewError(domain.ErrNotFound, "user not found")

var userColumns = []string{"id", "username", "email", "password_hash", "role", "admin_code", "admin_id", "created_at", "updated_at"}

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Role         string         `db:"role"`
	AdminCode    sql.NullString `db:"admin_code"`
	AdminID      sql.NullString `db:"admin_id"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() (*domain.Identity, error) {
	u := &domain.Identity{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	switch domain.Role(r.Role) {
	case domain.RoleAdmin:
		u.Binding = domain.AdminBinding{Code: r.AdminCode.String}
	case domain.RoleEmployee:
		u.Binding = domain.EmployeeBinding{AdminID: r.AdminID.String}
	default:
		return nil, fmt.Errorf("user %s has unknown role %q", r.ID, r.Role)
	}
	return u, nil
}

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sqlx.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new identity. Uniqueness of username, email and admin
// code is left to the table constraints.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.Identity) error {
	var adminCode, adminID sql.NullString
	switch b := user.Binding.(type) {
	case domain.AdminBinding:
		adminCode = sql.NullString{String: b.Code, Valid: true}
	case domain.EmployeeBinding:
		adminID = sql.NullString{String: b.AdminID, Valid: true}
	default:
		return domain.NewError(domain.ErrInvalidInput, "user has no tenant binding")
	}

	query, args, err := psql.Insert("users").
		Columns("id", "username", "email", "password_hash", "role", "admin_code", "admin_id").
		Values(user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role()), adminCode, adminID).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if mapped := translate(err); mapped != err {
			return mapped
		}
		r.logger.Error("failed to create user",
			slog.String("username", user.Username),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresUserRepository) getOne(ctx context.Context, pred sq.Sqlizer) (*domain.Identity, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user: %w", err)
	}

	var row userRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errUserNotFound
		}
		if mapped := translate(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toDomain()
}

// GetByID retrieves an identity by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// GetByUsername retrieves an identity by username
func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.getOne(ctx, sq.Eq{"username": username})
}

// GetAdminByCode resolves a tenant code to the admin that owns it
func (r *PostgresUserRepository) GetAdminByCode(ctx context.Context, code string) (*domain.Identity, error) {
	return r.getOne(ctx, sq.Eq{"admin_code": code, "role": string(domain.RoleAdmin)})
}

// UpdatePassword replaces the stored password hash
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query, args, err := psql.Update("users").
		Set("password_hash", passwordHash).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password: %w", err)
	}
	return r.execOne(ctx, query, args, "update password")
}

// Delete removes an identity. Linked employee profiles and their tasks
// go with it through ON DELETE CASCADE; deleting an admin removes its tenant.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete user: %w", err)
	}
	return r.execOne(ctx, query, args, "delete user")
}

// DeleteInTenant removes an employee identity registered under adminID
func (r *PostgresUserRepository) DeleteInTenant(ctx context.Context, adminID, id string) error {
	query, args, err := psql.Delete("users").
		Where(sq.Eq{"id": id, "admin_id": adminID, "role": string(domain.RoleEmployee)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete tenant user: %w", err)
	}
	return r.execOne(ctx, query, args, "delete tenant user")
}

// ListByTenant lists the identities registered with an admin's code,
// together with their employee profile id when onboarded
func (r *PostgresUserRepository) ListByTenant(ctx context.Context, adminID string) ([]*domain.TenantUser, error) {
	query, args, err := psql.Select(
		"u.id", "u.username", "u.email", "COALESCE(e.id::text, '') AS employee_id", "u.created_at",
	).
		From("users u").
		LeftJoin("employees e ON e.user_id = u.id AND e.admin_id = u.admin_id").
		Where(sq.Eq{"u.admin_id": adminID, "u.role": string(domain.RoleEmployee)}).
		OrderBy("u.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tenant users: %w", err)
	}

	var rows []struct {
		ID         string    `db:"id"`
		Username   string    `db:"username"`
		Email      string    `db:"email"`
		EmployeeID string    `db:"employee_id"`
		CreatedAt  time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.Error("failed to list users by tenant",
			slog.String("tenant_id", adminID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list users: %w", translate(err))
	}

	users := make([]*domain.TenantUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, &domain.TenantUser{
			ID:         row.ID,
			Username:   row.Username,
			Email:      row.Email,
			EmployeeID: row.EmployeeID,
			CreatedAt:  row.CreatedAt,
		})
	}
	return users, nil
}

func (r *PostgresUserRepository) execOne(ctx context.Context, query string, args []interface{}, op string) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if mapped := translate(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errUserNotFound
	}
	return nil
}
