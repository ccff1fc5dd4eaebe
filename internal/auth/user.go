package auth

// Role represents operator access level
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReadOnly Role = "readonly"
)

// User represents an authenticated API operator
type User struct {
	Username string `json:"username"`
	UID      string `json:"uid"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the user may change engine state
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ParseRole converts a role name, defaulting to read-only
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleReadOnly
}

// anonymous is the operator used when authentication is disabled
var anonymous = &User{Username: "anonymous", UID: "0", Role: RoleAdmin}
