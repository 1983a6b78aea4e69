package domain

import "time"

// Membership roles, ordered weakest to strongest.
const (
	RoleView  = "view"
	RoleEdit  = "edit"
	RoleAdmin = "admin"
)

// Membership grants a non-owner user access to a project at a given role.
// A user holds at most one row per project; grants upsert the role.
type Membership struct {
	ID        string
	ProjectID string
	UserID    string
	Role      string
	CreatedAt time.Time
}

// ValidRole reports whether r is a grantable role.
func ValidRole(r string) bool {
	switch r {
	case RoleView, RoleEdit, RoleAdmin:
		return true
	}
	return false
}
