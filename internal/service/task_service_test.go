package service

import (
	"context"
	"slices"
	"testing"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/events"
)

func strPtr(s string) *string { return &s }

func TestTaskInputValidation(t *testing.T) {
	tests := []struct {
		name string
		in   TaskInput
		msg  string
	}{
		{"missing title", TaskInput{Status: "pending", Priority: "low", EmployeeID: "e1"}, "title, status, priority, and employee_id are required"},
		{"bad status", TaskInput{Title: "x", Status: "done", Priority: "low", EmployeeID: "e1"}, "invalid status"},
		{"bad priority", TaskInput{Title: "x", Status: "pending", Priority: "urgent", EmployeeID: "e1"}, "invalid priority"},
		{"bad due date", TaskInput{Title: "x", Status: "pending", Priority: "low", EmployeeID: "e1", DueDate: strPtr("31/12/2024")}, "due_date must be a date in YYYY-MM-DD format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.toTask()
			assertKind(t, err, domain.ErrInvalidInput)
			if domain.MessageOf(err) != tt.msg {
				t.Fatalf("expected %q, got %q", tt.msg, domain.MessageOf(err))
			}
		})
	}

	task, err := TaskInput{Title: " x ", Description: strPtr("  "), Status: "pending", Priority: "low", EmployeeID: "e1", DueDate: strPtr("2024-12-31")}.toTask()
	if err != nil {
		t.Fatalf("valid input: %v", err)
	}
	if task.Title != "x" || task.Description != nil || task.DueDate.String() != "2024-12-31" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestTaskCrossTenantGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, code := f.registerAdmin(t, "alice")
	zed, zedCode := f.registerAdmin(t, "zed")
	bob := f.registerEmployee(t, "bob", code)
	yann := f.registerEmployee(t, "yann", zedCode)
	bobEmp := f.onboard(t, alice, bob)
	yannEmp := f.onboard(t, zed, yann)
	task := f.assign(t, alice, bobEmp, "Audit", domain.StatusPending, domain.PriorityHigh)

	if task.EmployeeName != "bob" || task.TenantID != alice.UserID {
		t.Fatalf("unexpected task %+v", task)
	}

	_, err := f.tasks.Create(ctx, zed, TaskInput{Title: "Steal", Status: "pending", Priority: "low", EmployeeID: bobEmp.ID})
	assertKind(t, err, domain.ErrForbidden)
	if domain.MessageOf(err) != "you can only assign tasks to your own employees" {
		t.Fatalf("unexpected message %q", domain.MessageOf(err))
	}

	_, err = f.tasks.Update(ctx, alice, task.ID, TaskInput{Title: "Audit", Status: "pending", Priority: "low", EmployeeID: yannEmp.ID})
	assertKind(t, err, domain.ErrForbidden)

	_, err = f.tasks.Get(ctx, zed, task.ID)
	assertKind(t, err, domain.ErrNotFound)
	_, err = f.tasks.Update(ctx, zed, task.ID, TaskInput{Title: "Audit", Status: "pending", Priority: "low", EmployeeID: yannEmp.ID})
	assertKind(t, err, domain.ErrNotFound)
	_, err = f.tasks.UpdateStatus(ctx, zed, task.ID, "completed")
	assertKind(t, err, domain.ErrNotFound)
	assertKind(t, f.tasks.Delete(ctx, zed, task.ID), domain.ErrNotFound)

	_, err = f.tasks.UpdateStatus(ctx, yann, task.ID, "completed")
	if err == nil {
		t.Fatalf("foreign employee must not move the task")
	}

	got, err := f.tasks.Get(ctx, alice, task.ID)
	if err != nil || got.Status != domain.StatusPending {
		t.Fatalf("task must be untouched: %+v, %v", got, err)
	}
}

func TestTaskEmployeeAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, code := f.registerAdmin(t, "alice")
	bob := f.registerEmployee(t, "bob", code)
	carol := f.registerEmployee(t, "carol", code)
	dave := f.registerEmployee(t, "dave", code)
	bobEmp := f.onboard(t, alice, bob)
	carolEmp := f.onboard(t, alice, carol)
	bobTask := f.assign(t, alice, bobEmp, "Bob's", domain.StatusPending, domain.PriorityHigh)
	carolTask := f.assign(t, alice, carolEmp, "Carol's", domain.StatusPending, domain.PriorityLow)

	_, err := f.tasks.Create(ctx, bob, TaskInput{Title: "x", Status: "pending", Priority: "low", EmployeeID: bobEmp.ID})
	assertKind(t, err, domain.ErrForbidden)
	assertKind(t, f.tasks.Delete(ctx, bob, bobTask.ID), domain.ErrForbidden)

	if _, err := f.tasks.Get(ctx, bob, bobTask.ID); err != nil {
		t.Fatalf("own task: %v", err)
	}
	_, err = f.tasks.Get(ctx, bob, carolTask.ID)
	assertKind(t, err, domain.ErrForbidden)
	_, err = f.tasks.Get(ctx, bob, "missing")
	assertKind(t, err, domain.ErrForbidden)

	moved, err := f.tasks.UpdateStatus(ctx, bob, bobTask.ID, "in-progress")
	if err != nil {
		t.Fatalf("own status: %v", err)
	}
	if moved.Status != domain.StatusInProgress || moved.EmployeeName != "bob" {
		t.Fatalf("unexpected task %+v", moved)
	}

	_, err = f.tasks.UpdateStatus(ctx, bob, carolTask.ID, "completed")
	assertKind(t, err, domain.ErrForbidden)
	if domain.MessageOf(err) != "you can only update your own tasks" {
		t.Fatalf("unexpected message %q", domain.MessageOf(err))
	}
	// a missing id answers like a colleague's task
	_, err = f.tasks.UpdateStatus(ctx, bob, "missing", "completed")
	assertKind(t, err, domain.ErrForbidden)
	_, err = f.tasks.Get(ctx, bob, "missing")
	assertKind(t, err, domain.ErrForbidden)
	_, err = f.tasks.UpdateStatus(ctx, dave, bobTask.ID, "completed")
	assertKind(t, err, domain.ErrForbidden)
	_, err = f.tasks.UpdateStatus(ctx, bob, bobTask.ID, "")
	assertKind(t, err, domain.ErrInvalidInput)
	_, err = f.tasks.UpdateStatus(ctx, bob, bobTask.ID, "archived")
	assertKind(t, err, domain.ErrInvalidInput)

	if _, err := f.tasks.UpdateStatus(ctx, alice, carolTask.ID, "completed"); err != nil {
		t.Fatalf("admin status: %v", err)
	}
}

func TestTaskListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, code := f.registerAdmin(t, "alice")
	bob := f.registerEmployee(t, "bob", code)
	carol := f.registerEmployee(t, "carol", code)
	dave := f.registerEmployee(t, "dave", code)
	bobEmp := f.onboard(t, alice, bob)
	carolEmp := f.onboard(t, alice, carol)
	f.assign(t, alice, bobEmp, "one", domain.StatusPending, domain.PriorityHigh)
	f.assign(t, alice, bobEmp, "two", domain.StatusCompleted, domain.PriorityLow)
	f.assign(t, alice, carolEmp, "three", domain.StatusPending, domain.PriorityHigh)

	all, err := f.tasks.List(ctx, alice, TaskQuery{})
	if err != nil || len(all) != 3 {
		t.Fatalf("admin list: %d, %v", len(all), err)
	}
	if all[0].Title != "three" {
		t.Fatalf("expected newest first, got %s", all[0].Title)
	}

	high, _ := f.tasks.List(ctx, alice, TaskQuery{Priority: "high"})
	if len(high) != 2 {
		t.Fatalf("expected 2 high priority tasks, got %d", len(high))
	}
	carolOnly, _ := f.tasks.List(ctx, alice, TaskQuery{EmployeeID: carolEmp.ID})
	if len(carolOnly) != 1 || carolOnly[0].Title != "three" {
		t.Fatalf("unexpected employee filter result %v", carolOnly)
	}

	own, _ := f.tasks.List(ctx, bob, TaskQuery{})
	if len(own) != 2 {
		t.Fatalf("employee must see its 2 tasks, got %d", len(own))
	}
	pending, _ := f.tasks.List(ctx, bob, TaskQuery{Status: "pending"})
	if len(pending) != 1 || pending[0].Title != "one" {
		t.Fatalf("unexpected status filter result %v", pending)
	}
	peek, err := f.tasks.List(ctx, bob, TaskQuery{EmployeeID: carolEmp.ID})
	if err != nil || len(peek) != 0 {
		t.Fatalf("employee filter on a colleague must be empty, got %d", len(peek))
	}
	none, err := f.tasks.List(ctx, dave, TaskQuery{})
	if err != nil || len(none) != 0 {
		t.Fatalf("unlinked employee must see nothing, got %d", len(none))
	}
}

func TestTaskEventsEmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, code := f.registerAdmin(t, "alice")
	bob := f.registerEmployee(t, "bob", code)
	emp := f.onboard(t, alice, bob)

	task := f.assign(t, alice, emp, "Ship", domain.StatusPending, domain.PriorityMedium)
	if _, err := f.tasks.UpdateStatus(ctx, bob, task.ID, "completed"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if _, err := f.tasks.Update(ctx, alice, task.ID, TaskInput{Title: "Ship v2", Status: "pending", Priority: "high", EmployeeID: emp.ID}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := f.tasks.Delete(ctx, alice, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{events.TaskCreated, events.TaskStatusChanged, events.TaskUpdated, events.TaskDeleted}
	if got := f.sink.types(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	status := f.sink.events[1]
	if status.ActorID != bob.UserID || status.TenantID != alice.UserID || status.Status != "completed" {
		t.Fatalf("unexpected status event %+v", status)
	}
}

func TestTaskWatchFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, code := f.registerAdmin(t, "boss")
	worker := f.registerEmployee(t, "worker", code)
	other := f.registerEmployee(t, "other", code)
	workerEmp := f.onboard(t, admin, worker)
	otherEmp := f.onboard(t, admin, other)

	mine := events.TaskEvent{TenantID: admin.TenantID, EmployeeID: workerEmp.ID}
	theirs := events.TaskEvent{TenantID: admin.TenantID, EmployeeID: otherEmp.ID}
	foreign := events.TaskEvent{TenantID: "someone-else", EmployeeID: workerEmp.ID}

	adminSees, err := f.tasks.WatchFilter(ctx, admin)
	if err != nil {
		t.Fatalf("admin filter: %v", err)
	}
	if !adminSees(mine) || !adminSees(theirs) || adminSees(foreign) {
		t.Fatal("admin must see exactly its own tenant's events")
	}

	workerSees, err := f.tasks.WatchFilter(ctx, worker)
	if err != nil {
		t.Fatalf("worker filter: %v", err)
	}
	if !workerSees(mine) || workerSees(theirs) || workerSees(foreign) {
		t.Fatal("employee must see only its own events")
	}
}

func TestTaskWatchFilterPicksUpLateOnboarding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, code := f.registerAdmin(t, "boss")
	late := f.registerEmployee(t, "late", code)
	other := f.registerEmployee(t, "other", code)
	otherEmp := f.onboard(t, admin, other)

	lateSees, err := f.tasks.WatchFilter(ctx, late)
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if lateSees(events.TaskEvent{TenantID: admin.TenantID, EmployeeID: otherEmp.ID}) {
		t.Fatal("unlinked employee must see nothing")
	}

	lateEmp := f.onboard(t, admin, late)
	if !lateSees(events.TaskEvent{TenantID: admin.TenantID, EmployeeID: lateEmp.ID}) {
		t.Fatal("events of the new employee record must show up without a new watch")
	}
	if lateSees(events.TaskEvent{TenantID: admin.TenantID, EmployeeID: otherEmp.ID}) {
		t.Fatal("colleague events must stay hidden")
	}
}
