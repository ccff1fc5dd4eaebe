package settings

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// settingsBucket holds one nested bucket per user
	settingsBucket = "_settings"
)

type registration struct {
	key    string
	userID int
	obs    Observer
}

// BoltStore is a bbolt implementation of the Store interface
type BoltStore struct {
	db     *bbolt.DB
	logger *log.Logger

	mu            sync.RWMutex
	currentUser   int
	registrations []registration
}

// NewBoltStore opens (or creates) the settings database at path
func NewBoltStore(path string, logger *log.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(settingsBucket)); err != nil {
			return fmt.Errorf("failed to create settings bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, logger: logger, currentUser: UserSystem}, nil
}

// CurrentUser returns the user that UserCurrent resolves to
func (s *BoltStore) CurrentUser() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUser
}

// SetCurrentUser switches the current user
func (s *BoltStore) SetCurrentUser(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID >= 0 {
		s.currentUser = userID
	}
}

func (s *BoltStore) resolve(userID int) int {
	if userID == UserCurrent {
		return s.CurrentUser()
	}
	return userID
}

func userBucketName(userID int) []byte {
	return []byte("user/" + strconv.Itoa(userID))
}

// GetInt returns the stored value or ErrNotFound
func (s *BoltStore) GetInt(key string, userID int) (int, error) {
	userID = s.resolve(userID)
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucket))
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}

		userBucket := bucket.Bucket(userBucketName(userID))
		if userBucket == nil {
			return ErrNotFound
		}

		data := userBucket.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		raw = make([]byte, len(data))
		copy(raw, data)
		return nil
	})
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("failed to parse int setting %s: %w", key, err)
	}
	return value, nil
}

// GetIntForUser returns the stored value, or def if it is unset or unreadable
func (s *BoltStore) GetIntForUser(key string, def int, userID int) int {
	value, err := s.GetInt(key, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && s.logger != nil {
			s.logger.Printf("[settings] Failed to read %s: %v", key, err)
		}
		return def
	}
	return value
}

// PutIntForUser stores a value and notifies observers of the key
func (s *BoltStore) PutIntForUser(key string, value int, userID int) error {
	if key == "" {
		return fmt.Errorf("setting key cannot be empty")
	}
	userID = s.resolve(userID)
	if userID < 0 {
		return fmt.Errorf("invalid user %d", userID)
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucket))
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}

		userBucket, err := bucket.CreateBucketIfNotExists(userBucketName(userID))
		if err != nil {
			return fmt.Errorf("failed to create user bucket: %w", err)
		}

		return userBucket.Put([]byte(key), []byte(strconv.Itoa(value)))
	})
	if err != nil {
		return err
	}

	s.notify(key, userID)
	return nil
}

// List returns every setting stored for the user
func (s *BoltStore) List(userID int) (map[string]int, error) {
	userID = s.resolve(userID)
	result := make(map[string]int)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(settingsBucket))
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}

		userBucket := bucket.Bucket(userBucketName(userID))
		if userBucket == nil {
			// User has no settings yet - return empty map
			return nil
		}

		return userBucket.ForEach(func(k, v []byte) error {
			value, err := strconv.Atoi(string(v))
			if err != nil {
				return nil // Skip corrupted entries
			}
			result[string(k)] = value
			return nil
		})
	})

	return result, err
}

// RegisterObserverForUser attaches obs to changes of key
func (s *BoltStore) RegisterObserverForUser(key string, obs Observer, userID int) {
	if obs == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations = append(s.registrations, registration{key: key, userID: userID, obs: obs})
}

// UnregisterObserver detaches every registration of obs
func (s *BoltStore) UnregisterObserver(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.registrations[:0]
	for _, r := range s.registrations {
		if r.obs != obs {
			kept = append(kept, r)
		}
	}
	s.registrations = kept
}

// ObserverCount returns the number of registrations for key
func (s *BoltStore) ObserverCount(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.registrations {
		if r.key == key {
			n++
		}
	}
	return n
}

func (s *BoltStore) notify(key string, userID int) {
	s.mu.RLock()
	current := s.currentUser
	var targets []Observer
	for _, r := range s.registrations {
		if r.key != key {
			continue
		}
		switch r.userID {
		case UserAll, userID:
			targets = append(targets, r.obs)
		case UserCurrent:
			if userID == current {
				targets = append(targets, r.obs)
			}
		}
	}
	s.mu.RUnlock()

	for _, obs := range targets {
		obs.OnChange(key, userID)
	}
}

// Close closes the storage
func (s *BoltStore) Close() error {
	return s.db.Close()
}
