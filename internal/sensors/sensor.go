// Package sensors describes hardware sensor handles and the lookups used to
// bind logical triggers to them.
package sensors

import (
	"fmt"
	"time"
)

// Sensor type codes
const (
	TypeAll               = -1
	TypeLight             = 5
	TypeProximity         = 8
	TypeSignificantMotion = 17
	TypePickUpGesture     = 25
	TypeDevicePrivateBase = 65536
)

// Sensor string types
const (
	StringTypeLight             = "sensor.light"
	StringTypeProximity         = "sensor.proximity"
	StringTypeSignificantMotion = "sensor.significant_motion"
	StringTypePickUpGesture     = "sensor.pick_up_gesture"
)

// Sensor is a handle to a single hardware sensor.
// Handles are compared by pointer; a catalog hands out one pointer per sensor.
type Sensor struct {
	Type       int
	StringType string
	Name       string
	Vendor     string
	WakeUp     bool
	MaxRange   float64
}

// String implements fmt.Stringer
func (s *Sensor) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("{Sensor name=%q, type=%q}", s.Name, s.StringType)
}

// Event is a single reading delivered by a sensor
type Event struct {
	Sensor    *Sensor
	Timestamp time.Time
	Values    []float64
}

// TriggerListener receives one-shot trigger events
type TriggerListener interface {
	OnTrigger(event Event)
}

// EventListener receives continuous sensor events
type EventListener interface {
	OnSensorChanged(event Event)
}

// Lister enumerates sensors of a type, TypeAll for every sensor
type Lister interface {
	SensorList(sensorType int) []*Sensor
}

// FindSensor returns the first sensor whose string type equals sensorType
// and whose name equals name. Empty arguments match anything, but at least
// one of them must be set. Returns nil when nothing matches.
func FindSensor(l Lister, sensorType, name string) *Sensor {
	if sensorType == "" && name == "" {
		return nil
	}
	for _, s := range l.SensorList(TypeAll) {
		if s == nil {
			continue
		}
		if (name == "" || s.Name == name) && (sensorType == "" || s.StringType == sensorType) {
			return s
		}
	}
	return nil
}

// FindSensors resolves each type string in order. Repeated type strings
// resolve to the same handle, so adjacent entries sharing a type share a
// sensor. Unresolved entries are nil.
func FindSensors(l Lister, types []string) []*Sensor {
	result := make([]*Sensor, len(types))
	cache := make(map[string]*Sensor, len(types))
	for i, t := range types {
		s, ok := cache[t]
		if !ok {
			s = FindSensor(l, t, "")
			cache[t] = s
		}
		result[i] = s
	}
	return result
}

// PluginType identifies a sensor delivered by a plugin transport rather than
// the native sensor API
type PluginType int

const (
	PluginWakeLockScreen PluginType = 1
	PluginWakeDisplay    PluginType = 2
	PluginSwipe          PluginType = 3
	PluginSkipStatus     PluginType = 4
)

var pluginTypeNames = map[PluginType]string{
	PluginWakeLockScreen: "wake_lock_screen",
	PluginWakeDisplay:    "wake_display",
	PluginSwipe:          "swipe",
	PluginSkipStatus:     "skip_status",
}

// String implements fmt.Stringer
func (t PluginType) String() string {
	if name, ok := pluginTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("plugin(%d)", int(t))
}

// ParsePluginType converts a plugin sensor name into a PluginType
func ParsePluginType(name string) (PluginType, bool) {
	for t, n := range pluginTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// PluginEvent is a reading delivered by a plugin transport
type PluginEvent struct {
	Type   PluginType
	Values []float64
}

// PluginListener receives plugin sensor events
type PluginListener interface {
	OnPluginEvent(event PluginEvent)
}
