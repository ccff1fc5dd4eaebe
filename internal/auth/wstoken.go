package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// StreamTicketStore issues one-time tickets for the websocket stream.
// Browsers cannot set headers on websocket upgrades, so an authenticated
// client trades its token for a short-lived ticket passed in the query.
type StreamTicketStore struct {
	mu       sync.Mutex
	tickets  map[string]*ticketEntry
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type ticketEntry struct {
	user      User
	createdAt time.Time
}

const (
	// StreamTicketTTL is how long a ticket is valid
	StreamTicketTTL = 30 * time.Second
	// StreamTicketLength is the byte length of the ticket (hex encoded to 2x)
	StreamTicketLength = 32
)

// NewStreamTicketStore creates a ticket store with background cleanup
func NewStreamTicketStore() *StreamTicketStore {
	store := newStreamTicketStore(time.Now)
	go store.cleanupLoop()
	return store
}

func newStreamTicketStore(now func() time.Time) *StreamTicketStore {
	return &StreamTicketStore{
		tickets: make(map[string]*ticketEntry),
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Generate creates a new one-time ticket for a user
func (s *StreamTicketStore) Generate(user *User) (string, error) {
	bytes := make([]byte, StreamTicketLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	ticket := hex.EncodeToString(bytes)

	s.mu.Lock()
	s.tickets[ticket] = &ticketEntry{
		user:      *user,
		createdAt: s.now(),
	}
	s.mu.Unlock()

	return ticket, nil
}

// Validate consumes a ticket and returns its user
func (s *StreamTicketStore) Validate(ticket string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tickets[ticket]
	if !exists {
		return nil, false
	}

	// One-time use
	delete(s.tickets, ticket)

	if s.now().Sub(entry.createdAt) > StreamTicketTTL {
		return nil, false
	}

	user := entry.user
	return &user, true
}

// Stop ends the cleanup goroutine
func (s *StreamTicketStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *StreamTicketStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes all expired tickets
func (s *StreamTicketStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for ticket, entry := range s.tickets {
		if now.Sub(entry.createdAt) > StreamTicketTTL {
			delete(s.tickets, ticket)
		}
	}
}
