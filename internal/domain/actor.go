package domain

// RoleAdmin may read every order, mark deliveries and see the summary.
const RoleAdmin = "admin"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
