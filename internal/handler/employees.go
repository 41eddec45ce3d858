package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

// EmployeeHandler handles the employee roster endpoints
type EmployeeHandler struct {
	employees *service.EmployeeService
	logger    *slog.Logger
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(employees *service.EmployeeService, logger *slog.Logger) *EmployeeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmployeeHandler{employees: employees, logger: logger}
}

// CreateEmployeeRequest onboards a registered identity by email
type CreateEmployeeRequest struct {
	Email      string `json:"email"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

// UpdateEmployeeRequest changes the admin-owned fields of an employee
type UpdateEmployeeRequest struct {
	Department string `json:"department"`
	Position   string `json:"position"`
}

// List handles GET /api/employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.employees.List(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/employees/{id}
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	emp, err := h.employees.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// Create handles POST /api/employees
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	emp, err := h.employees.Create(r.Context(), caller(r), service.NewEmployeeInput{
		Email:      req.Email,
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// Update handles PUT /api/employees/{id}
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateEmployeeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	emp, err := h.employees.Update(r.Context(), caller(r), r.PathValue("id"), req.Department, req.Position)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// Delete handles DELETE /api/employees/{id}
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.employees.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Employee deleted successfully"})
}
