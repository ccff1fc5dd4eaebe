package events

import (
	"fmt"
	"sync"
	"time"

	"ambientd/internal/doze"
	"ambientd/internal/posture"
)

// EventType represents the type of doze trace event
type EventType string

const (
	// Sensor events
	EventSensorFired      EventType = "sensor_fired"
	EventSensorRegister   EventType = "sensor_register"
	EventSensorUnregister EventType = "sensor_unregister"
	EventPluginUpdate     EventType = "plugin_update"

	// Device events
	EventPostureChanged EventType = "posture_changed"

	// Pulse requests sent to the display
	EventPulse EventType = "pulse"

	// Operator events
	EventLogin       EventType = "login"
	EventLoginFailed EventType = "login_failed"
	EventConfig      EventType = "config_changed"
)

// Event represents a doze trace entry
type Event struct {
	ID        int64     `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Sensor    string    `json:"sensor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Success   bool      `json:"success"`
	Details   string    `json:"details,omitempty"`
}

// Store holds events in memory with a fixed capacity (ring buffer)
type Store struct {
	mu      sync.RWMutex
	events  []Event
	maxSize int
	nextID  int64
	now     func() time.Time

	subs    map[int]chan Event
	nextSub int
}

// NewStore creates a new event store with specified max capacity
func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Store{
		events:  make([]Event, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
		subs:    make(map[int]chan Event),
	}
}

// Add adds a new event to the store and fans it out to subscribers
func (s *Store) Add(eventType EventType, sensor, reason string, success bool, details string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event := Event{
		ID:        s.nextID,
		Type:      eventType,
		Timestamp: s.now(),
		Sensor:    sensor,
		Reason:    reason,
		Success:   success,
		Details:   details,
	}

	// Ring buffer: remove oldest if at max capacity
	if len(s.events) >= s.maxSize {
		s.events = s.events[1:]
	}
	s.events = append(s.events, event)

	for _, ch := range s.subs {
		// Slow subscribers miss events rather than block the engine
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

// Subscribe returns a channel receiving every new event and a function
// that cancels the subscription
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	ch := make(chan Event, buffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// TraceSensor implements doze.Log
func (s *Store) TraceSensor(reason doze.Reason) {
	s.Add(EventSensorFired, "", reason.String(), true, "")
}

// TraceSensorRegisterAttempt implements doze.Log
func (s *Store) TraceSensorRegisterAttempt(sensor string, registered bool) {
	s.Add(EventSensorRegister, sensor, "", registered, "")
}

// TraceSensorUnregisterAttempt implements doze.Log
func (s *Store) TraceSensorUnregisterAttempt(sensor string, unregistered bool, reason string) {
	s.Add(EventSensorUnregister, sensor, "", unregistered, reason)
}

// TracePluginSensorUpdate implements doze.Log
func (s *Store) TracePluginSensorUpdate(sensor string, registered bool) {
	s.Add(EventPluginUpdate, sensor, "", registered, "")
}

// TracePostureChanged implements doze.Log
func (s *Store) TracePostureChanged(p posture.Posture, detail string) {
	s.Add(EventPostureChanged, "", "", true, fmt.Sprintf("posture=%s %s", p, detail))
}

// TracePulse records a pulse request
func (s *Store) TracePulse(reason doze.Reason, screenX, screenY float64) {
	s.Add(EventPulse, "", reason.String(), true, fmt.Sprintf("x=%g y=%g", screenX, screenY))
}

// GetAll returns all events (newest first)
func (s *Store) GetAll() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Event, len(s.events))
	for i, e := range s.events {
		result[len(s.events)-1-i] = e
	}
	return result
}

// GetLast returns the last N events (newest first)
func (s *Store) GetLast(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.events) {
		n = len(s.events)
	}
	if n < 0 {
		n = 0
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		result[i] = s.events[len(s.events)-1-i]
	}
	return result
}

// GetSince returns events newer than the given ID (newest first)
func (s *Store) GetSince(lastID int64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ID > lastID {
			result = append(result, s.events[i])
		} else {
			break
		}
	}
	return result
}

// Count returns the number of buffered events
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LastID returns the ID of the most recent event
func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}

var _ doze.Log = (*Store)(nil)
