package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/tasktracker/internal/service"
)

// TaskHandler handles the task endpoints
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{tasks: tasks, logger: logger}
}

// TaskRequest is the body of a task create or full update
type TaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	EmployeeID  string  `json:"employee_id"`
	DueDate     *string `json:"due_date"`
}

func (req TaskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		EmployeeID:  req.EmployeeID,
		DueDate:     req.DueDate,
	}
}

// StatusRequest is the body of PATCH /api/tasks/{id}/status
type StatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/tasks?status=&priority=&employee_id=
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.tasks.List(r.Context(), caller(r), service.TaskQuery{
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		EmployeeID: q.Get("employee_id"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task, err := h.tasks.Create(r.Context(), caller(r), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PUT /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task, err := h.tasks.Update(r.Context(), caller(r), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateStatus handles PATCH /api/tasks/{id}/status
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	task, err := h.tasks.UpdateStatus(r.Context(), caller(r), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(r.Context(), caller(r), r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}
