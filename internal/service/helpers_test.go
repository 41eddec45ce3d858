package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/events"
	"github.com/aryan0dhankhar/tasktracker/internal/repository/memory"
	"github.com/aryan0dhankhar/tasktracker/internal/security"
	"github.com/aryan0dhankhar/tasktracker/internal/security/auth"
	"github.com/aryan0dhankhar/tasktracker/pkg/cache"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.TaskEvent
}

func (r *recordingSink) Enqueue(ev events.TaskEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	registry  *TenantRegistry
	auth      *AuthService
	employees *EmployeeService
	tasks     *TaskService
	dashboard *DashboardService
	cache     *cache.Bytes
	sink      *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	gate := security.NewGate(nil)
	c := cache.NewBytes()
	sink := &recordingSink{}

	dashboard := NewDashboardService(store.Tasks(), store.Employees(), gate, c, 0, nil)
	registry := NewTenantRegistry(store.Users(), nil)
	tokens := auth.NewTokenManager("test-secret", "tasktracker", 0)

	return &fixture{
		store:     store,
		registry:  registry,
		auth:      NewAuthService(store.Users(), store.Employees(), registry, auth.NewBcryptHasher(bcrypt.MinCost), tokens, gate, dashboard, nil),
		employees: NewEmployeeService(store.Employees(), gate, dashboard, nil),
		tasks:     NewTaskService(store.Tasks(), store.Employees(), gate, sink, dashboard, nil),
		dashboard: dashboard,
		cache:     c,
		sink:      sink,
	}
}

func (f *fixture) registerAdmin(t *testing.T, name string) (domain.Principal, string) {
	t.Helper()
	s, err := f.auth.Register(context.Background(), RegisterInput{
		Username: name, Email: name + "@example.com", Password: "password123", Role: "admin",
	})
	if err != nil {
		t.Fatalf("register admin %s: %v", name, err)
	}
	return PrincipalOf(s.Identity), s.Identity.TenantCode()
}

func (f *fixture) registerEmployee(t *testing.T, name, code string) domain.Principal {
	t.Helper()
	s, err := f.auth.Register(context.Background(), RegisterInput{
		Username: name, Email: name + "@example.com", Password: "password123", Role: "employee", AdminCode: code,
	})
	if err != nil {
		t.Fatalf("register employee %s: %v", name, err)
	}
	return PrincipalOf(s.Identity)
}

func (f *fixture) onboard(t *testing.T, admin domain.Principal, who domain.Principal) *domain.Employee {
	t.Helper()
	emp, err := f.employees.Create(context.Background(), admin, NewEmployeeInput{
		Email: who.Email, Department: "Engineering", Position: "Developer",
	})
	if err != nil {
		t.Fatalf("onboard %s: %v", who.Username, err)
	}
	return emp
}

func (f *fixture) assign(t *testing.T, admin domain.Principal, emp *domain.Employee, title string, status domain.TaskStatus, priority domain.TaskPriority) *domain.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), admin, TaskInput{
		Title: title, Status: string(status), Priority: string(priority), EmployeeID: emp.ID,
	})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
