// Package settings provides per-user integer settings with change observers
package settings

import (
	"errors"
)

// User handles
const (
	UserSystem  = 0
	UserAll     = -1
	UserCurrent = -2
)

var (
	// ErrNotFound is returned when a key is not set for the user
	ErrNotFound = errors.New("setting not found")
)

// Observer is notified after a setting it watches changes.
// Observers are compared by identity, so implementations should be pointers.
type Observer interface {
	OnChange(key string, userID int)
}

// Store is the interface for settings storage
type Store interface {
	// GetIntForUser returns the stored value, or def if it is unset or unreadable
	GetIntForUser(key string, def int, userID int) int

	// GetInt returns the stored value or ErrNotFound
	GetInt(key string, userID int) (int, error)

	// PutIntForUser stores a value and notifies observers of the key
	PutIntForUser(key string, value int, userID int) error

	// List returns every setting stored for the user
	List(userID int) (map[string]int, error)

	// RegisterObserverForUser attaches obs to key changes for userID, or
	// for every user when userID is UserAll
	RegisterObserverForUser(key string, obs Observer, userID int)

	// UnregisterObserver detaches every registration of obs
	UnregisterObserver(obs Observer)

	// CurrentUser returns the user that UserCurrent resolves to
	CurrentUser() int

	// SetCurrentUser switches the current user
	SetCurrentUser(userID int)

	// Close closes the storage
	Close() error
}
