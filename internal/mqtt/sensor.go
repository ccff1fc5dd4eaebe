package mqtt

// Component is the Home Assistant entity platform
type Component string

const (
	ComponentSensor       Component = "sensor"
	ComponentBinarySensor Component = "binary_sensor"
)

// EntityConfig contains entity configuration for Home Assistant Discovery
type EntityConfig struct {
	// Basic parameters
	EntityID  string    // Unique entity ID
	Name      string    // Display name
	Component Component // sensor, binary_sensor

	// MQTT topics
	StateTopic      string // Topic for value
	AttributesTopic string // Topic for attributes
	ValueTemplate   string // Jinja template extracting the state

	// Binary sensor payloads
	PayloadOn  string
	PayloadOff string

	// Home Assistant parameters
	DeviceClass string
	Icon        string

	// Device grouping
	DeviceInfo *DeviceInfo
}

// DeviceInfo contains device information for grouping in Home Assistant
type DeviceInfo struct {
	Identifiers  []string // Unique device identifiers
	Name         string   // Device name
	Model        string   // Model
	Manufacturer string   // Manufacturer
}
