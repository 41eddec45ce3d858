package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// schema creates the three tables. Tenant consistency between users,
// employees and tasks is enforced with composite foreign keys so that a
// row can never reference a parent from another tenant, and deletes
// cascade from identity to employee to task.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('admin', 'employee')),
		admin_code    TEXT,
		admin_id      UUID REFERENCES users (id) ON DELETE CASCADE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_admin_code_key UNIQUE (admin_code),
		CONSTRAINT users_id_admin_key UNIQUE (id, admin_id),
		CONSTRAINT users_tenant_binding_check CHECK (
			(role = 'admin' AND admin_code IS NOT NULL AND admin_id IS NULL) OR
			(role = 'employee' AND admin_code IS NULL AND admin_id IS NOT NULL)
		)
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL,
		department TEXT NOT NULL,
		position   TEXT NOT NULL,
		user_id    UUID,
		admin_id   UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT employees_email_key UNIQUE (email),
		CONSTRAINT employees_user_id_key UNIQUE (user_id),
		CONSTRAINT employees_id_admin_key UNIQUE (id, admin_id),
		CONSTRAINT employees_user_tenant_fkey FOREIGN KEY (user_id, admin_id)
			REFERENCES users (id, admin_id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT,
		status      TEXT NOT NULL CHECK (status IN ('pending', 'in-progress', 'completed')),
		priority    TEXT NOT NULL CHECK (priority IN ('low', 'medium', 'high')),
		employee_id UUID NOT NULL,
		admin_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		due_date    DATE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT tasks_employee_tenant_fkey FOREIGN KEY (employee_id, admin_id)
			REFERENCES employees (id, admin_id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_admin_id ON users (admin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_employees_admin_id ON employees (admin_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_admin_created ON tasks (admin_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_employee_id ON tasks (employee_id)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return WithTx(ctx, db, nil, func(tx *sqlx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migration step %d: %w", i+1, err)
			}
		}
		logger.Info("schema migrated", slog.Int("statements", len(schema)))
		return nil
	})
}

// Reset drops all tables and recreates the schema
func Reset(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS tasks, employees, users CASCADE`); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(ctx, db, logger)
}
