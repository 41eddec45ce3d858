package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

func seedTenant(t *testing.T, s *Store, adminID, code, employeeUser string) {
	t.Helper()
	ctx := context.Background()
	if err := s.Users().Create(ctx, &domain.Identity{
		ID: adminID, Username: adminID, Email: adminID + "@example.com",
		Binding: domain.AdminBinding{Code: code},
	}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if employeeUser == "" {
		return
	}
	if err := s.Users().Create(ctx, &domain.Identity{
		ID: employeeUser, Username: employeeUser, Email: employeeUser + "@example.com",
		Binding: domain.EmployeeBinding{AdminID: adminID},
	}); err != nil {
		t.Fatalf("create employee identity: %v", err)
	}
}

func TestUserUniqueness(t *testing.T) {
	s := NewStore()
	seedTenant(t, s, "a1", "AAAA1111", "")
	ctx := context.Background()

	err := s.Users().Create(ctx, &domain.Identity{ID: "x", Username: "a1", Email: "new@example.com", Binding: domain.AdminBinding{Code: "BBBB2222"}})
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	err = s.Users().Create(ctx, &domain.Identity{ID: "x", Username: "new", Email: "new@example.com", Binding: domain.AdminBinding{Code: "AAAA1111"}})
	if !errors.Is(err, domain.ErrAdminCodeTaken) {
		t.Fatalf("expected code conflict, got %v", err)
	}
	err = s.Users().Create(ctx, &domain.Identity{ID: "x", Username: "new", Email: "new@example.com", Binding: domain.EmployeeBinding{AdminID: "nobody"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected dangling tenant to fail, got %v", err)
	}
}

func TestOnboardingIsTenantScoped(t *testing.T) {
	s := NewStore()
	seedTenant(t, s, "a1", "AAAA1111", "eve")
	seedTenant(t, s, "a2", "BBBB2222", "")
	ctx := context.Background()

	_, err := s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-x", TenantID: "a2", Email: "eve@example.com"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected other tenant to miss the identity, got %v", err)
	}

	emp, err := s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-1", TenantID: "a1", Email: "eve@example.com", Department: "Ops"})
	if err != nil {
		t.Fatalf("onboard: %v", err)
	}
	if emp.Name != "eve" || emp.UserID != "eve" {
		t.Fatalf("unexpected employee %+v", emp)
	}

	_, err = s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-2", TenantID: "a1", Email: "eve@example.com"})
	if !errors.Is(err, domain.ErrAlreadyEmployee) {
		t.Fatalf("expected second link to conflict, got %v", err)
	}

	users, _ := s.Users().ListByTenant(ctx, "a1")
	if len(users) != 1 || !users[0].Linked() {
		t.Fatalf("expected one linked tenant user, got %+v", users)
	}
}

func TestTaskAssignmentStaysInTenant(t *testing.T) {
	s := NewStore()
	seedTenant(t, s, "a1", "AAAA1111", "eve")
	seedTenant(t, s, "a2", "BBBB2222", "bob")
	ctx := context.Background()
	s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-eve", TenantID: "a1", Email: "eve@example.com"})
	s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-bob", TenantID: "a2", Email: "bob@example.com"})

	err := s.Tasks().Create(ctx, &domain.Task{ID: "t1", TenantID: "a1", EmployeeID: "emp-bob", Status: domain.StatusPending, Priority: domain.PriorityLow})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected foreign employee to be rejected, got %v", err)
	}

	task := &domain.Task{ID: "t1", Title: "a", TenantID: "a1", EmployeeID: "emp-eve", Status: domain.StatusPending, Priority: domain.PriorityLow}
	if err := s.Tasks().Create(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.EmployeeName != "eve" {
		t.Fatalf("expected joined name, got %q", task.EmployeeName)
	}

	if _, err := s.Tasks().Get(ctx, "a2", "t1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cross-tenant read to miss, got %v", err)
	}

	moved := *task
	moved.EmployeeID = "emp-bob"
	if err := s.Tasks().Update(ctx, &moved); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected reassignment across tenants to fail, got %v", err)
	}

	_, err = s.Tasks().UpdateStatus(ctx, domain.TaskFilter{TenantID: "a1", EmployeeID: "emp-other"}, "t1", domain.StatusCompleted)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected scoped status update to miss, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	s := NewStore()
	seedTenant(t, s, "a1", "AAAA1111", "eve")
	ctx := context.Background()
	s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-eve", TenantID: "a1", Email: "eve@example.com"})
	s.Tasks().Create(ctx, &domain.Task{ID: "t1", TenantID: "a1", EmployeeID: "emp-eve", Status: domain.StatusPending, Priority: domain.PriorityLow})

	if err := s.Users().DeleteInTenant(ctx, "a1", "eve"); err != nil {
		t.Fatalf("delete identity: %v", err)
	}
	if n, _ := s.Employees().Count(ctx, "a1"); n != 0 {
		t.Fatalf("expected employee to cascade, got %d", n)
	}
	if tasks, _ := s.Tasks().List(ctx, domain.TaskFilter{TenantID: "a1"}); len(tasks) != 0 {
		t.Fatalf("expected tasks to cascade, got %d", len(tasks))
	}

	seedTenant(t, s, "a2", "BBBB2222", "bob")
	if err := s.Users().Delete(ctx, "a2"); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	if _, err := s.Users().GetByID(ctx, "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected tenant members to go with their admin, got %v", err)
	}
}

func TestTopEmployeesOrdering(t *testing.T) {
	s := NewStore()
	seedTenant(t, s, "a1", "AAAA1111", "")
	ctx := context.Background()
	for _, name := range []string{"zed", "amy", "bob"} {
		s.Users().Create(ctx, &domain.Identity{ID: name, Username: name, Email: name + "@example.com", Binding: domain.EmployeeBinding{AdminID: "a1"}})
		s.Employees().CreateFromIdentity(ctx, domain.NewEmployee{ID: "emp-" + name, TenantID: "a1", Email: name + "@example.com"})
	}
	s.Tasks().Create(ctx, &domain.Task{ID: "t1", TenantID: "a1", EmployeeID: "emp-zed", Status: domain.StatusCompleted, Priority: domain.PriorityLow})
	s.Tasks().Create(ctx, &domain.Task{ID: "t2", TenantID: "a1", EmployeeID: "emp-zed", Status: domain.StatusPending, Priority: domain.PriorityLow})

	top, _ := s.Tasks().TopEmployees(ctx, "a1", 2)
	if len(top) != 2 || top[0].Name != "zed" || top[1].Name != "amy" {
		t.Fatalf("unexpected ranking %+v", top)
	}
	if top[0].TaskCount != 2 || top[0].Completed != 1 {
		t.Fatalf("unexpected counts %+v", top[0])
	}
}
