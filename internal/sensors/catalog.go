package sensors

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the YAML description of the sensors a device exposes
type Profile struct {
	Device  string          `yaml:"device"`
	Sensors []SensorProfile `yaml:"sensors"`
}

// SensorProfile is one sensor entry in a device profile
type SensorProfile struct {
	Name        string  `yaml:"name"`
	Type        int     `yaml:"type"`
	StringType  string  `yaml:"string_type"`
	Vendor      string  `yaml:"vendor"`
	WakeUp      bool    `yaml:"wake_up"`
	MaxRange    float64 `yaml:"max_range"`
	Unavailable bool    `yaml:"unavailable"` // listed but declines registration
}

// Catalog is an in-memory hardware sensor provider.
// Trigger registrations are one-shot: a dispatched event cancels the
// registration before the listener runs.
type Catalog struct {
	// Device is the profile's device name
	Device string

	mu          sync.Mutex
	sensors     []*Sensor
	unavailable map[*Sensor]bool
	triggers    map[*Sensor][]TriggerListener
	listeners   map[*Sensor][]EventListener
	now         func() time.Time
}

// NewCatalog creates a catalog holding the given sensors
func NewCatalog(sensors ...*Sensor) *Catalog {
	return &Catalog{
		sensors:     sensors,
		unavailable: make(map[*Sensor]bool),
		triggers:    make(map[*Sensor][]TriggerListener),
		listeners:   make(map[*Sensor][]EventListener),
		now:         time.Now,
	}
}

// LoadProfile reads a YAML device profile and builds a catalog from it
func LoadProfile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read device profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile builds a catalog from YAML profile data
func ParseProfile(data []byte) (*Catalog, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse device profile: %w", err)
	}

	c := NewCatalog()
	c.Device = p.Device
	for i, sp := range p.Sensors {
		if sp.Name == "" && sp.StringType == "" {
			return nil, fmt.Errorf("sensor %d: name or string_type is required", i)
		}
		s := &Sensor{
			Type:       sp.Type,
			StringType: sp.StringType,
			Name:       sp.Name,
			Vendor:     sp.Vendor,
			WakeUp:     sp.WakeUp,
			MaxRange:   sp.MaxRange,
		}
		c.sensors = append(c.sensors, s)
		if sp.Unavailable {
			c.unavailable[s] = true
		}
	}
	return c, nil
}

// Add appends a sensor to the catalog
func (c *Catalog) Add(s *Sensor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensors = append(c.sensors, s)
}

// SetAvailable controls whether a sensor accepts registrations
func (c *Catalog) SetAvailable(s *Sensor, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if available {
		delete(c.unavailable, s)
	} else {
		c.unavailable[s] = true
	}
}

// Available reports whether a known sensor accepts registrations
func (c *Catalog) Available(s *Sensor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.knownLocked(s) && !c.unavailable[s]
}

// SensorList returns the sensors of the given type, or all of them for TypeAll
func (c *Catalog) SensorList(sensorType int) []*Sensor {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]*Sensor, 0, len(c.sensors))
	for _, s := range c.sensors {
		if sensorType == TypeAll || s.Type == sensorType {
			result = append(result, s)
		}
	}
	return result
}

// DefaultSensor returns the first sensor of the given type, or nil
func (c *Catalog) DefaultSensor(sensorType int) *Sensor {
	list := c.SensorList(sensorType)
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// ByName returns the sensor with the given name, or nil
func (c *Catalog) ByName(name string) *Sensor {
	return FindSensor(c, "", name)
}

// RequestTriggerSensor registers a one-shot trigger listener.
// Returns false if the sensor is unknown or declines registration.
func (c *Catalog) RequestTriggerSensor(l TriggerListener, s *Sensor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.knownLocked(s) || c.unavailable[s] {
		return false
	}
	for _, existing := range c.triggers[s] {
		if existing == l {
			return true
		}
	}
	c.triggers[s] = append(c.triggers[s], l)
	return true
}

// CancelTriggerSensor removes a trigger listener.
// Returns false if it was not registered.
func (c *Catalog) CancelTriggerSensor(l TriggerListener, s *Sensor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.triggers[s]
	for i, existing := range list {
		if existing == l {
			c.triggers[s] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// RegisterListener registers a continuous listener
func (c *Catalog) RegisterListener(l EventListener, s *Sensor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.knownLocked(s) || c.unavailable[s] {
		return false
	}
	for _, existing := range c.listeners[s] {
		if existing == l {
			return true
		}
	}
	c.listeners[s] = append(c.listeners[s], l)
	return true
}

// UnregisterListener removes a continuous listener
func (c *Catalog) UnregisterListener(l EventListener, s *Sensor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := c.listeners[s]
	for i, existing := range list {
		if existing == l {
			c.listeners[s] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// TriggerCount returns the number of live trigger registrations for a sensor
func (c *Catalog) TriggerCount(s *Sensor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.triggers[s])
}

// Dispatch delivers a reading to every listener of the sensor.
// Trigger listeners are removed before they are called.
// Returns the number of listeners notified.
func (c *Catalog) Dispatch(s *Sensor, values ...float64) int {
	c.mu.Lock()
	triggers := c.triggers[s]
	delete(c.triggers, s)
	listeners := append([]EventListener(nil), c.listeners[s]...)
	event := Event{Sensor: s, Timestamp: c.now(), Values: values}
	c.mu.Unlock()

	for _, l := range triggers {
		l.OnTrigger(event)
	}
	for _, l := range listeners {
		l.OnSensorChanged(event)
	}
	return len(triggers) + len(listeners)
}

func (c *Catalog) knownLocked(s *Sensor) bool {
	if s == nil {
		return false
	}
	for _, known := range c.sensors {
		if known == s {
			return true
		}
	}
	return false
}
