package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

// UserRepository implements domain.UserRepository in memory
type UserRepository struct {
	s *Store
}

// Create stores a new identity
func (r *UserRepository) Create(ctx context.Context, identity *domain.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if identity.Binding == nil {
		return domain.NewError(domain.ErrInvalidInput, "user has no tenant binding")
	}
	if _, ok := r.s.users[identity.ID]; ok {
		return domain.NewError(domain.ErrConflict, "resource already exists")
	}
	for _, u := range r.s.users {
		switch {
		case u.Username == identity.Username:
			return domain.ErrUsernameTaken
		case u.Email == identity.Email:
			return domain.ErrEmailTaken
		case identity.TenantCode() != "" && u.TenantCode() == identity.TenantCode():
			return domain.ErrAdminCodeTaken
		}
	}
	if b, ok := identity.Binding.(domain.EmployeeBinding); ok {
		admin, exists := r.s.users[b.AdminID]
		if !exists || admin.Role() != domain.RoleAdmin {
			return domain.NewError(domain.ErrNotFound, "referenced resource not found")
		}
	}

	now := r.s.now()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	r.s.users[identity.ID] = &userRecord{Identity: *identity, seq: r.s.next()}
	return nil
}

func (r *UserRepository) find(match func(*domain.Identity) bool) (*domain.Identity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(&u.Identity) {
			cp := u.Identity
			return &cp, nil
		}
	}
	return nil, errUserNotFound
}

// GetByID retrieves an identity by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.find(func(u *domain.Identity) bool { return u.ID == id })
}

// GetByUsername retrieves an identity by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.find(func(u *domain.Identity) bool { return u.Username == username })
}

// GetAdminByCode resolves a tenant code to its admin
func (r *UserRepository) GetAdminByCode(ctx context.Context, code string) (*domain.Identity, error) {
	return r.find(func(u *domain.Identity) bool {
		return u.Role() == domain.RoleAdmin && u.TenantCode() == code
	})
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return errUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = r.s.now()
	return nil
}

// Delete removes an identity with the same cascade as the database
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return errUserNotFound
	}
	r.s.deleteUserLocked(id)
	return nil
}

// DeleteInTenant removes an employee identity registered under adminID
func (r *UserRepository) DeleteInTenant(ctx context.Context, adminID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok || u.Role() != domain.RoleEmployee || u.TenantID() != adminID {
		return errUserNotFound
	}
	r.s.deleteUserLocked(id)
	return nil
}

// ListByTenant lists employee identities of a tenant, newest first
func (r *UserRepository) ListByTenant(ctx context.Context, adminID string) ([]*domain.TenantUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	linked := make(map[string]string)
	for _, e := range r.s.employees {
		if e.UserID != "" {
			linked[e.UserID] = e.ID
		}
	}

	var recs []*userRecord
	for _, u := range r.s.users {
		if u.Role() == domain.RoleEmployee && u.TenantID() == adminID {
			recs = append(recs, u)
		}
	}
	slices.SortFunc(recs, func(a, b *userRecord) int { return cmp.Compare(b.seq, a.seq) })

	out := make([]*domain.TenantUser, 0, len(recs))
	for _, u := range recs {
		out = append(out, &domain.TenantUser{
			ID:         u.ID,
			Username:   u.Username,
			Email:      u.Email,
			EmployeeID: linked[u.ID],
			CreatedAt:  u.CreatedAt,
		})
	}
	return out, nil
}
