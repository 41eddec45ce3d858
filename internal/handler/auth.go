package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/security/audit"
	"github.com/aryan0dhankhar/tasktracker/internal/security/middleware"
	"github.com/aryan0dhankhar/tasktracker/internal/security/ratelimit"
	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService   *service.AuthService
	limiter       *ratelimit.Limiter
	loginAttempts int
	secureCookie  bool
	audit         *audit.Logger
	logger        *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService *service.AuthService,
	limiter *ratelimit.Limiter,
	loginAttempts int,
	secureCookie bool,
	auditLog *audit.Logger,
	logger *slog.Logger,
) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &AuthHandler{
		authService:   authService,
		limiter:       limiter,
		loginAttempts: loginAttempts,
		secureCookie:  secureCookie,
		audit:         auditLog,
		logger:        logger,
	}
}

// RegisterRequest represents registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	AdminCode string `json:"adminCode"`
}

// RegisterResponse is returned on successful registration. AdminCode is
// only set for admins.
type RegisterResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	AdminCode *string     `json:"adminCode"`
	Token     string      `json:"token"`
}

// LoginRequest represents login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	AdminCode *string     `json:"admin_code"`
	AdminID   *string     `json:"admin_id"`
	Token     string      `json:"token"`
}

// UserResponse is the public view of an identity
type UserResponse struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	Email     string           `json:"email"`
	Role      domain.Role      `json:"role"`
	AdminCode *string          `json:"admin_code"`
	AdminID   *string          `json:"admin_id"`
	CreatedAt time.Time        `json:"created_at"`
	Employee  *domain.Employee `json:"employee,omitempty"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// tenantRef returns the admin id an employee belongs to, nil for admins
func tenantRef(identity *domain.Identity) *string {
	if b, ok := identity.Binding.(domain.EmployeeBinding); ok {
		return optional(b.AdminID)
	}
	return nil
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.authService.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		AdminCode: req.AdminCode,
	})
	if err != nil {
		h.audit.LogAuth(r.Context(), "register", req.Username, "", "failed")
		writeError(w, r, h.logger, err)
		return
	}
	h.audit.LogAuth(r.Context(), "register", session.Identity.Username, session.Identity.ID, "success")

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusCreated, RegisterResponse{
		ID:        session.Identity.ID,
		Username:  session.Identity.Username,
		Email:     session.Identity.Email,
		Role:      session.Identity.Role(),
		AdminCode: optional(session.Identity.TenantCode()),
		Token:     session.Token,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	key := "login:" + strings.ToLower(strings.TrimSpace(req.Username))
	if h.limiter != nil && !h.limiter.AllowStrict(key, h.loginAttempts, time.Minute) {
		h.audit.LogAuth(r.Context(), "login", req.Username, "", "throttled")
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts, try again later"})
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.LogAuth(r.Context(), "login", req.Username, "", "failed")
		writeError(w, r, h.logger, err)
		return
	}
	h.audit.LogAuth(r.Context(), "login", session.Identity.Username, session.Identity.ID, "success")

	h.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, LoginResponse{
		ID:        session.Identity.ID,
		Username:  session.Identity.Username,
		Email:     session.Identity.Email,
		Role:      session.Identity.Role(),
		AdminCode: optional(session.Identity.TenantCode()),
		AdminID:   tenantRef(session.Identity),
		Token:     session.Token,
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so logging
// out only clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.authService.Me(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id := profile.Identity
	writeJSON(w, http.StatusOK, UserResponse{
		ID:        id.ID,
		Username:  id.Username,
		Email:     id.Email,
		Role:      id.Role(),
		AdminCode: optional(id.TenantCode()),
		AdminID:   tenantRef(id),
		CreatedAt: id.CreatedAt,
		Employee:  profile.Employee,
	})
}

// DeleteMe handles DELETE /api/auth/me
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.DeleteAccount(r.Context(), caller(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.Logout(w, r)
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.authService.ChangePassword(r.Context(), caller(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
