//go:build linux && cgo

package auth

import (
	"fmt"
	"os/user"

	"github.com/msteinert/pam"
)

// Authenticate verifies username and password via PAM
func (p *PAMAuth) Authenticate(username, password string) (*User, error) {
	t, err := pam.StartFunc(p.serviceName, username, func(s pam.Style, msg string) (string, error) {
		switch s {
		case pam.PromptEchoOff:
			return password, nil
		case pam.PromptEchoOn:
			return username, nil
		case pam.ErrorMsg:
			return "", fmt.Errorf("PAM error: %s", msg)
		case pam.TextInfo:
			return "", nil
		}
		return "", fmt.Errorf("unrecognized PAM message style: %v", s)
	})
	if err != nil {
		return nil, fmt.Errorf("PAM start failed: %w", err)
	}

	if err := t.Authenticate(0); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := t.AcctMgmt(0); err != nil {
		return nil, fmt.Errorf("account validation failed: %w", err)
	}

	u, err := user.Lookup(username)
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	return &User{
		Username: username,
		UID:      u.Uid,
		Role:     p.determineRole(u),
	}, nil
}
