// Package proximity adapts a hardware proximity sensor into a near/far stream
package proximity

import (
	"log"
	"time"

	"ambientd/internal/sensors"
)

// Source is the hardware side the proximity sensor registers with
type Source interface {
	RegisterListener(l sensors.EventListener, s *sensors.Sensor) bool
	UnregisterListener(l sensors.EventListener, s *sensors.Sensor)
}

// Event is a single near/far reading
type Event struct {
	Below     bool // true when an object is near
	Timestamp time.Time
}

// Listener receives near/far events
type Listener func(e Event)

// Sensor turns raw distance readings into near/far events.
// When a secondary sensor is configured it is used instead of the primary
// while the screen state marks it safe to use.
type Sensor struct {
	source    Source
	primary   *sensors.Sensor
	secondary *sensors.Sensor
	threshold float64
	logger    *log.Logger

	listeners     []Listener
	paused        bool
	registered    bool
	active        *sensors.Sensor
	secondarySafe bool
	last          *Event
}

// New creates a proximity sensor over primary (and optional secondary).
// A threshold of zero uses the active sensor's max range.
func New(source Source, primary, secondary *sensors.Sensor, threshold float64, logger *log.Logger) *Sensor {
	return &Sensor{
		source:    source,
		primary:   primary,
		secondary: secondary,
		threshold: threshold,
		logger:    logger,
	}
}

// Register adds a listener and starts listening to hardware unless paused
func (p *Sensor) Register(l Listener) {
	if l == nil {
		return
	}
	p.listeners = append(p.listeners, l)
	p.registerInternal()
}

// Resume starts listening to hardware
func (p *Sensor) Resume() {
	p.paused = false
	p.registerInternal()
}

// Pause stops listening to hardware but keeps listeners
func (p *Sensor) Pause() {
	p.paused = true
	p.unregisterInternal()
}

// IsRegistered reports whether a hardware registration is live
func (p *Sensor) IsRegistered() bool {
	return p.registered
}

// IsNear returns the last known state, or nil if unknown
func (p *Sensor) IsNear() *bool {
	if p.last == nil {
		return nil
	}
	near := p.last.Below
	return &near
}

// AlertListeners re-sends the last known event to every listener
func (p *Sensor) AlertListeners() {
	if p.last == nil {
		return
	}
	p.dispatch(*p.last)
}

// SetSecondarySafe selects the secondary sensor while safe
func (p *Sensor) SetSecondarySafe(safe bool) {
	if p.secondarySafe == safe {
		return
	}
	p.secondarySafe = safe
	if p.registered && p.selectSensor() != p.active {
		p.unregisterInternal()
		p.registerInternal()
	}
}

// Destroy unregisters from hardware and drops all listeners
func (p *Sensor) Destroy() {
	p.Pause()
	p.listeners = nil
	p.last = nil
}

// OnSensorChanged implements sensors.EventListener
func (p *Sensor) OnSensorChanged(e sensors.Event) {
	if len(e.Values) == 0 {
		return
	}
	threshold := p.threshold
	if threshold <= 0 && e.Sensor != nil {
		threshold = e.Sensor.MaxRange
	}
	event := Event{Below: e.Values[0] < threshold, Timestamp: e.Timestamp}
	p.last = &event
	p.dispatch(event)
}

func (p *Sensor) dispatch(e Event) {
	for _, l := range p.listeners {
		l(e)
	}
}

func (p *Sensor) selectSensor() *sensors.Sensor {
	if p.secondarySafe && p.secondary != nil {
		return p.secondary
	}
	return p.primary
}

func (p *Sensor) registerInternal() {
	if p.paused || p.registered || len(p.listeners) == 0 {
		return
	}
	s := p.selectSensor()
	if s == nil {
		return
	}
	p.registered = p.source.RegisterListener(p, s)
	if p.registered {
		p.active = s
	} else if p.logger != nil {
		p.logger.Printf("[proximity] Failed to register %s", s)
	}
}

func (p *Sensor) unregisterInternal() {
	if !p.registered {
		return
	}
	p.source.UnregisterListener(p, p.active)
	p.registered = false
	p.active = nil
	p.last = nil
}
