package domain

// Role identifies the kind of authenticated caller.
type Role string

// List of caller roles.
const (
	RoleCustomer Role = "customer"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
)

// Valid checks if the Role is known.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleRider || r == RoleAdmin
}

// Actor is an authenticated caller.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor may bypass handover gates.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
