// Package posture tracks the physical configuration of a foldable device
package posture

import (
	"fmt"
	"strings"
	"sync"
)

// Posture is the physical configuration of the device
type Posture int

const (
	Unknown Posture = iota
	Closed
	HalfOpened
	Opened
	Flipped
)

// SupportedCount is the number of defined postures
const SupportedCount = int(Flipped) + 1

var names = [...]string{"unknown", "closed", "half_opened", "opened", "flipped"}

// String implements fmt.Stringer
func (p Posture) String() string {
	if p.Valid() {
		return names[p]
	}
	return fmt.Sprintf("posture(%d)", int(p))
}

// Valid reports whether p is one of the defined postures
func (p Posture) Valid() bool {
	return p >= Unknown && int(p) < SupportedCount
}

// Parse converts a posture name into a Posture
func Parse(s string) (Posture, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	for i, n := range names {
		if n == s {
			return Posture(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown posture %q", s)
}

// Callback is notified when the posture changes
type Callback func(p Posture)

// Controller holds the current posture and notifies listeners on change
type Controller struct {
	mu        sync.Mutex
	current   Posture
	nextID    int
	callbacks map[int]Callback
	order     []int
}

// NewController creates a controller starting in the given posture
func NewController(initial Posture) *Controller {
	return &Controller{
		current:   initial,
		callbacks: make(map[int]Callback),
	}
}

// Posture returns the current posture
func (c *Controller) Posture() Posture {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AddCallback registers a callback and returns a handle for RemoveCallback
func (c *Controller) AddCallback(cb Callback) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.callbacks[c.nextID] = cb
	c.order = append(c.order, c.nextID)
	return c.nextID
}

// RemoveCallback unregisters a callback. Unknown handles are ignored.
func (c *Controller) RemoveCallback(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.callbacks[id]; !ok {
		return
	}
	delete(c.callbacks, id)
	for i, n := range c.order {
		if n == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Set updates the posture and notifies callbacks in registration order.
// Returns false and notifies nobody when the posture is unchanged.
func (c *Controller) Set(p Posture) bool {
	c.mu.Lock()
	if c.current == p {
		c.mu.Unlock()
		return false
	}
	c.current = p
	cbs := make([]Callback, 0, len(c.order))
	for _, id := range c.order {
		cbs = append(cbs, c.callbacks[id])
	}
	c.mu.Unlock()

	for _, cb := range cbs {
		cb(p)
	}
	return true
}
