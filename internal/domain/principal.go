package domain

// Principal is the verified identity behind a request, as carried by a
// session token.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenant_id"` // the admin's own id for admins
}

// IsAdmin reports whether the principal administers its tenant
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
