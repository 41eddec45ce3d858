// Package memory holds in-process implementations of the repository
// interfaces. They enforce the same uniqueness, tenant and cascade rules as
// the Postgres schema and back the service and handler tests as well as
// the server's no-database mode.
package memory

import (
	"sync"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

var (
	errUserNotFound     = domain.NewError(domain.ErrNotFound, "user not found")
	errEmployeeNotFound = domain.NewError(domain.ErrNotFound, "employee not found")
	errTaskNotFound     = domain.NewError(domain.ErrNotFound, "task not found")
)

type userRecord struct {
	domain.Identity
	seq uint64
}

type employeeRecord struct {
	domain.Employee
	seq uint64
}

type taskRecord struct {
	domain.Task
	seq uint64
}

// Store is a single in-memory database shared by the three repositories so
// that deletes can cascade across them
type Store struct {
	mu        sync.RWMutex
	users     map[string]*userRecord
	employees map[string]*employeeRecord
	tasks     map[string]*taskRecord
	seq       uint64
	now       func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:     make(map[string]*userRecord),
		employees: make(map[string]*employeeRecord),
		tasks:     make(map[string]*taskRecord),
		now:       time.Now,
	}
}

// Users returns the identity repository backed by s
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Employees returns the employee repository backed by s
func (s *Store) Employees() *EmployeeRepository { return &EmployeeRepository{s: s} }

// Tasks returns the task repository backed by s
func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// next must be called with mu held for writing
func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

// deleteUserLocked removes an identity and everything that hangs off it
func (s *Store) deleteUserLocked(id string) {
	u, ok := s.users[id]
	if !ok {
		return
	}
	delete(s.users, id)

	if u.Role() == domain.RoleAdmin {
		for uid, other := range s.users {
			if other.TenantID() == id {
				delete(s.users, uid)
			}
		}
		for eid, e := range s.employees {
			if e.TenantID == id {
				delete(s.employees, eid)
			}
		}
		for tid, t := range s.tasks {
			if t.TenantID == id {
				delete(s.tasks, tid)
			}
		}
		return
	}

	for eid, e := range s.employees {
		if e.UserID == id {
			s.deleteEmployeeLocked(eid)
		}
	}
}

func (s *Store) deleteEmployeeLocked(id string) {
	delete(s.employees, id)
	for tid, t := range s.tasks {
		if t.EmployeeID == id {
			delete(s.tasks, tid)
		}
	}
}
