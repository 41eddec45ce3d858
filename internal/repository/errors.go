package repository

import (
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

// psql builds statements with Postgres placeholders
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqInvalidTextRep      = "22P02"
)

// translate maps Postgres constraint failures to domain errors and leaves
// everything else untouched.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		switch pqErr.Constraint {
		case "users_username_key":
			return domain.ErrUsernameTaken
		case "users_email_key", "employees_email_key":
			return domain.ErrEmailTaken
		case "users_admin_code_key":
			return domain.ErrAdminCodeTaken
		case "employees_user_id_key":
			return domain.ErrAlreadyEmployee
		default:
			return domain.NewError(domain.ErrConflict, "resource already exists")
		}
	case pqForeignKeyViolation:
		if pqErr.Constraint == "tasks_employee_tenant_fkey" {
			return domain.ErrForeignEmployee
		}
		return domain.NewError(domain.ErrNotFound, "referenced resource not found")
	case pqCheckViolation:
		return domain.NewError(domain.ErrInvalidInput, "value violates a constraint")
	case pqInvalidTextRep:
		// malformed uuid in a lookup: nothing can match it
		return domain.NewError(domain.ErrNotFound, "resource not found")
	}
	return err
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
