package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
	"github.com/aryan0dhankhar/tasktracker/internal/reliability/retry"
)

const codeMintAttempts = 5

var errUnknownCode = domain.NewError(domain.ErrNotFound, "admin code not found")

// TenantRegistry owns tenant join codes: it mints them for new admins and
// resolves them for employee registration
type TenantRegistry struct {
	users    domain.UserRepository
	logger   *slog.Logger
	mint     func() (string, error)
	attempts int
}

// NewTenantRegistry creates a registry over the identity store
func NewTenantRegistry(users domain.UserRepository, logger *slog.Logger) *TenantRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantRegistry{
		users:    users,
		logger:   logger,
		mint:     MintCode,
		attempts: codeMintAttempts,
	}
}

// MintCode returns 8 random upper-case hex characters
func MintCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// NormalizeCode canonicalizes user-typed codes
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ResolveCode returns the id of the admin owning code
func (r *TenantRegistry) ResolveCode(ctx context.Context, code string) (string, error) {
	code = NormalizeCode(code)
	if code == "" {
		return "", errUnknownCode
	}
	admin, err := r.users.GetAdminByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", errUnknownCode
		}
		return "", fmt.Errorf("resolve admin code: %w", err)
	}
	return admin.ID, nil
}

// RegisterAdmin stores identity as a new tenant root under a freshly minted
// code. Uniqueness is enforced by the store; a collision mints a new code
// and tries again.
func (r *TenantRegistry) RegisterAdmin(ctx context.Context, identity *domain.Identity) error {
	isCollision := func(err error) bool { return errors.Is(err, domain.ErrAdminCodeTaken) }

	_, err := retry.Do(ctx, retry.Immediate(r.attempts, isCollision), r.logger, "register admin",
		func(ctx context.Context) (struct{}, error) {
			code, err := r.mint()
			if err != nil {
				return struct{}{}, err
			}
			identity.Binding = domain.AdminBinding{Code: code}
			err = r.users.Create(ctx, identity)
			if isCollision(err) {
				metrics.ObserveCodeCollision()
			}
			return struct{}{}, err
		})
	if err != nil {
		return err
	}

	r.logger.Info("tenant created",
		slog.String("admin_id", identity.ID),
		slog.String("username", identity.Username),
	)
	return nil
}
