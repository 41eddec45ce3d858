package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/observability/metrics"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
	"github.com/aryan0dhankhar/tasktracker/internal/security/auth"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	errMissingRegistration = domain.NewError(domain.ErrInvalidInput, "username, email, and password are required")
	errMissingLogin        = domain.NewError(domain.ErrInvalidInput, "username and password are required")
	errCodeRequired        = domain.NewError(domain.ErrInvalidInput, "admin code is required for employee registration")
	errInvalidCode         = domain.NewError(domain.ErrInvalidInput, "invalid admin code")
	errWrongPassword       = domain.NewError(domain.ErrInvalidInput, "current password is incorrect")
)

// RegisterInput is a registration request as received from the client
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Role      string
	AdminCode string
}

// Session is an authenticated identity together with its signed token
type Session struct {
	Identity  *domain.Identity
	Token     string
	ExpiresAt time.Time
}

// Profile is the caller's identity plus its employee record, if onboarded
type Profile struct {
	Identity *domain.Identity
	Employee *domain.Employee
}

// AuthService handles registration, login and account self-service
type AuthService struct {
	users       domain.UserRepository
	employees   domain.EmployeeRepository
	registry    *TenantRegistry
	hasher      auth.PasswordHasher
	tokens      *auth.TokenManager
	gate        *security.Gate
	invalidator Invalidator
	logger      *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	employees domain.EmployeeRepository,
	registry *TenantRegistry,
	hasher auth.PasswordHasher,
	tokens *auth.TokenManager,
	gate *security.Gate,
	invalidator Invalidator,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:       users,
		employees:   employees,
		registry:    registry,
		hasher:      hasher,
		tokens:      tokens,
		gate:        gate,
		invalidator: invalidatorOrNoop(invalidator),
		logger:      logger,
	}
}

// PrincipalOf builds the token claims for an identity
func PrincipalOf(identity *domain.Identity) domain.Principal {
	return domain.Principal{
		UserID:   identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		Role:     identity.Role(),
		TenantID: identity.TenantID(),
	}
}

const maxUsernameLength = 50

func validateRegistration(in *RegisterInput) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return errMissingRegistration
	}
	if utf8.RuneCountInString(in.Username) > maxUsernameLength {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("username must be at most %d characters", maxUsernameLength))
	}
	if !emailPattern.MatchString(in.Email) {
		return domain.NewError(domain.ErrInvalidInput, "invalid email format")
	}
	return validatePassword(in.Password)
}

func validatePassword(password string) error {
	if len(password) < auth.MinPasswordLength {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordLength {
		return domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordLength))
	}
	return nil
}

// Register creates an identity. Admins get a new tenant and code; employees
// join the tenant named by their code and stay unlinked until an admin
// onboards them.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	session, err := s.register(ctx, in)
	if err != nil {
		metrics.ObserveAuth("register", "failure")
		return nil, err
	}
	metrics.ObserveAuth("register", "success")
	return session, nil
}

func (s *AuthService) register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(strings.ToLower(strings.TrimSpace(in.Role)))
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	identity := &domain.Identity{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}

	switch role {
	case domain.RoleAdmin:
		if err := s.registry.RegisterAdmin(ctx, identity); err != nil {
			return nil, err
		}
	default:
		if NormalizeCode(in.AdminCode) == "" {
			return nil, errCodeRequired
		}
		adminID, err := s.registry.ResolveCode(ctx, in.AdminCode)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, errInvalidCode
			}
			return nil, err
		}
		identity.Binding = domain.EmployeeBinding{AdminID: adminID}
		if err := s.users.Create(ctx, identity); err != nil {
			// the admin was deleted between resolve and insert
			if errors.Is(err, domain.ErrNotFound) {
				return nil, errInvalidCode
			}
			return nil, err
		}
	}

	s.logger.Info("user registered",
		slog.String("user_id", identity.ID),
		slog.String("role", string(identity.Role())),
		slog.String("tenant_id", identity.TenantID()),
	)
	return s.issue(identity)
}

// Login verifies credentials and issues a session. Unknown usernames and
// wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.ObserveAuth("login", "failure")
		return nil, errMissingLogin
	}

	identity, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		// keep the response time of unknown usernames close to a real check
		_ = s.hasher.Compare(s.placeholderHash(), password)
		metrics.ObserveAuth("login", "failure")
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(identity.PasswordHash, password); err != nil {
		s.logger.Warn("login failed", slog.String("user_id", identity.ID))
		metrics.ObserveAuth("login", "failure")
		return nil, domain.ErrInvalidCredentials
	}

	metrics.ObserveAuth("login", "success")
	return s.issue(identity)
}

// Verify checks a session token and returns the principal it carries
func (s *AuthService) Verify(token string) (domain.Principal, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrExpired) {
			metrics.ObserveAuth("verify", "expired")
		} else {
			metrics.ObserveAuth("verify", "failure")
		}
		return domain.Principal{}, err
	}
	return claims.Principal, nil
}

// Me returns the caller's profile
func (s *AuthService) Me(ctx context.Context, p domain.Principal) (*Profile, error) {
	identity, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	profile := &Profile{Identity: identity}
	if identity.Role() == domain.RoleEmployee {
		emp, err := s.employees.GetByUser(ctx, identity.TenantID(), identity.ID)
		switch {
		case err == nil:
			profile.Employee = emp
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	return profile, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, p domain.Principal, current, next string) error {
	if current == "" || next == "" {
		return domain.NewError(domain.ErrInvalidInput, "current and new password are required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	identity, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(identity.PasswordHash, current); err != nil {
		return errWrongPassword
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, identity.ID, hash); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.String("user_id", identity.ID))
	return nil
}

// DeleteAccount removes the caller. An admin takes its whole tenant with
// it; an employee takes its employee record and tasks.
func (s *AuthService) DeleteAccount(ctx context.Context, p domain.Principal) error {
	if err := s.users.Delete(ctx, p.UserID); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, p.TenantID)
	s.logger.Info("account deleted",
		slog.String("user_id", p.UserID),
		slog.String("role", string(p.Role)),
		slog.String("tenant_id", p.TenantID),
	)
	return nil
}

// ListTenantUsers lists the identities registered with the caller's code
func (s *AuthService) ListTenantUsers(ctx context.Context, p domain.Principal) ([]*domain.TenantUser, error) {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionUserList, security.Resource{}); err != nil {
		return nil, err
	}
	return s.users.ListByTenant(ctx, p.TenantID)
}

// RemoveTenantUser deletes an identity of the caller's tenant
func (s *AuthService) RemoveTenantUser(ctx context.Context, p domain.Principal, id string) error {
	if err := s.gate.Authorize(security.Subject{Principal: p}, security.ActionUserDelete, security.Resource{}); err != nil {
		return err
	}
	if err := s.users.DeleteInTenant(ctx, p.TenantID, id); err != nil {
		return err
	}
	s.invalidator.Invalidate(ctx, p.TenantID)
	s.logger.Info("tenant user removed",
		slog.String("tenant_id", p.TenantID),
		slog.String("user_id", id),
	)
	return nil
}

// TokenTTL returns how long issued sessions stay valid
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(identity *domain.Identity) (*Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(PrincipalOf(identity))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(uuid.NewString())
	})
	return s.dummyHash
}
