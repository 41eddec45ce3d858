package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

// UserHandler lets an admin see and remove the identities registered with
// its code
type UserHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(authService *service.AuthService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{authService: authService, logger: logger}
}

// TenantUserResponse is one registered identity of the tenant
type TenantUserResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Linked     bool      `json:"linked"`
	EmployeeID *string   `json:"employee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// List handles GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListTenantUsers(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]TenantUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, TenantUserResponse{
			ID:         u.ID,
			Username:   u.Username,
			Email:      u.Email,
			Linked:     u.Linked(),
			EmployeeID: optional(u.EmployeeID),
			CreatedAt:  u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.RemoveTenantUser(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}
