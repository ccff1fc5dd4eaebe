//go:build !linux || !cgo

package auth

import "errors"

// Authenticate always fails where PAM is unavailable; operators use minted
// tokens instead
func (p *PAMAuth) Authenticate(username, password string) (*User, error) {
	return nil, errors.New("PAM authentication requires linux with cgo")
}
