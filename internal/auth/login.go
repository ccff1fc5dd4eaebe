package auth

import (
	"errors"
	"os/user"
)

// ErrInvalidCredentials is returned when a password check fails
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticator checks operator credentials
type Authenticator interface {
	Authenticate(username, password string) (*User, error)
}

// PAMAuth authenticates operators against the host's PAM stack. Members of
// an admin group get RoleAdmin, everyone else RoleReadOnly.
type PAMAuth struct {
	serviceName string
	adminGroups []string
	lookupGroup func(gid string) (*user.Group, error)
}

// NewPAMAuth creates new PAM authenticator
func NewPAMAuth() *PAMAuth {
	return &PAMAuth{
		serviceName: "login",
		adminGroups: []string{"wheel", "sudo", "root", "admin"},
		lookupGroup: user.LookupGroupId,
	}
}

// determineRole checks if user is admin based on group membership
func (p *PAMAuth) determineRole(u *user.User) Role {
	if u.Username == "root" {
		return RoleAdmin
	}

	groups, err := u.GroupIds()
	if err != nil {
		return RoleReadOnly
	}

	for _, gid := range groups {
		group, err := p.lookupGroup(gid)
		if err != nil {
			continue
		}
		for _, adminGroup := range p.adminGroups {
			if group.Name == adminGroup {
				return RoleAdmin
			}
		}
	}
	return RoleReadOnly
}

var _ Authenticator = (*PAMAuth)(nil)
