package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

// TaskRepository implements domain.TaskRepository in memory
type TaskRepository struct {
	s *Store
}

func matches(t *domain.Task, f domain.TaskFilter) bool {
	if t.TenantID != f.TenantID {
		return false
	}
	if f.EmployeeID != "" && t.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	return true
}

// view copies a stored task and fills in the joined employee name.
// Callers hold mu.
func (r *TaskRepository) view(t *taskRecord) *domain.Task {
	cp := t.Task
	if e, ok := r.s.employees[cp.EmployeeID]; ok {
		cp.EmployeeName = e.Name
	}
	return &cp
}

// List returns matching tasks, newest first
func (r *TaskRepository) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var recs []*taskRecord
	for _, t := range r.s.tasks {
		if matches(&t.Task, filter) {
			recs = append(recs, t)
		}
	}
	slices.SortFunc(recs, func(a, b *taskRecord) int { return cmp.Compare(b.seq, a.seq) })
	if filter.Limit > 0 && uint64(len(recs)) > filter.Limit {
		recs = recs[:filter.Limit]
	}

	out := make([]*domain.Task, 0, len(recs))
	for _, t := range recs {
		out = append(out, r.view(t))
	}
	return out, nil
}

// Get retrieves a task inside a tenant
func (r *TaskRepository) Get(ctx context.Context, tenantID, id string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok || t.TenantID != tenantID {
		return nil, errTaskNotFound
	}
	return r.view(t), nil
}

func (r *TaskRepository) assigneeLocked(tenantID, employeeID string) (*employeeRecord, error) {
	e, ok := r.s.employees[employeeID]
	if !ok || e.TenantID != tenantID {
		return nil, domain.ErrForeignEmployee
	}
	return e, nil
}

// Create inserts a task whose employee belongs to the task's tenant
func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, err := r.assigneeLocked(task.TenantID, task.EmployeeID)
	if err != nil {
		return err
	}
	if _, ok := r.s.tasks[task.ID]; ok {
		return domain.NewError(domain.ErrConflict, "resource already exists")
	}

	now := r.s.now()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.EmployeeName = e.Name
	r.s.tasks[task.ID] = &taskRecord{Task: *task, seq: r.s.next()}
	return nil
}

// Update replaces the mutable fields of a task
func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[task.ID]
	if !ok || t.TenantID != task.TenantID {
		return errTaskNotFound
	}
	e, err := r.assigneeLocked(task.TenantID, task.EmployeeID)
	if err != nil {
		return err
	}

	task.CreatedAt = t.CreatedAt
	task.UpdatedAt = r.s.now()
	task.EmployeeName = e.Name
	t.Task = *task
	return nil
}

// UpdateStatus changes the status of a task within scope
func (r *TaskRepository) UpdateStatus(ctx context.Context, scope domain.TaskFilter, id string, status domain.TaskStatus) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok || !matches(&t.Task, domain.TaskFilter{TenantID: scope.TenantID, EmployeeID: scope.EmployeeID}) {
		return nil, errTaskNotFound
	}
	t.Status = status
	t.UpdatedAt = r.s.now()
	return r.view(t), nil
}

// Delete removes a task of the tenant
func (r *TaskRepository) Delete(ctx context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok || t.TenantID != tenantID {
		return errTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

// Stats aggregates task counters within scope
func (r *TaskRepository) Stats(ctx context.Context, scope domain.TaskFilter) (*domain.TaskStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	scope = domain.TaskFilter{TenantID: scope.TenantID, EmployeeID: scope.EmployeeID}
	var st domain.TaskStats
	for _, t := range r.s.tasks {
		if !matches(&t.Task, scope) {
			continue
		}
		st.Total++
		switch t.Status {
		case domain.StatusCompleted:
			st.Completed++
		case domain.StatusInProgress:
			st.InProgress++
		case domain.StatusPending:
			st.Pending++
		}
		switch t.Priority {
		case domain.PriorityHigh:
			st.HighPriority++
		case domain.PriorityMedium:
			st.MediumPriority++
		case domain.PriorityLow:
			st.LowPriority++
		}
	}
	return &st, nil
}

// TopEmployees ranks the tenant's employees by task count, then name
func (r *TaskRepository) TopEmployees(ctx context.Context, tenantID string, limit uint64) ([]domain.EmployeeTaskCount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]*domain.EmployeeTaskCount)
	for _, e := range r.s.employees {
		if e.TenantID == tenantID {
			counts[e.ID] = &domain.EmployeeTaskCount{EmployeeID: e.ID, Name: e.Name}
		}
	}
	for _, t := range r.s.tasks {
		c, ok := counts[t.EmployeeID]
		if !ok {
			continue
		}
		c.TaskCount++
		if t.Status == domain.StatusCompleted {
			c.Completed++
		}
	}

	out := make([]domain.EmployeeTaskCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b domain.EmployeeTaskCount) int {
		if n := cmp.Compare(b.TaskCount, a.TaskCount); n != 0 {
			return n
		}
		return strings.Compare(a.Name, b.Name)
	})
	if limit > 0 && uint64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}
