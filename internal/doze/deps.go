package doze

import (
	"time"

	"ambientd/internal/posture"
	"ambientd/internal/proximity"
	"ambientd/internal/sensors"
	"ambientd/internal/settings"
)

// SensorManager is the native hardware sensor provider
type SensorManager interface {
	sensors.Lister
	RequestTriggerSensor(l sensors.TriggerListener, s *sensors.Sensor) bool
	CancelTriggerSensor(l sensors.TriggerListener, s *sensors.Sensor) bool
}

// PluginSensorManager is the transport for plugin-delivered sensors
type PluginSensorManager interface {
	RegisterPluginListener(t sensors.PluginType, l sensors.PluginListener)
	UnregisterPluginListener(t sensors.PluginType, l sensors.PluginListener)
}

// AmbientConfig describes the ambient display capabilities of the device
type AmbientConfig interface {
	Enabled(userID int) bool
	AlwaysOnEnabled(userID int) bool
	TapSensorTypeMapping() []string
	DoubleTapSensorType() string
	LongPressSensorType() string
	UdfpsLongPressSensorType() string
	QuickPickupSensorType() string
	DozePickupSensorAvailable() bool
	WakeScreenGestureAvailable() bool
	QuickPickupSensorEnabled(userID int) bool
	ScreenOffUdfpsEnabled(userID int) bool
	WakeLockScreenDebounce() time.Duration
}

// Parameters are the device-tuned doze policy knobs
type Parameters interface {
	SelectivelyRegisterSensorsUsingProx() bool
	SingleTapUsesProx(p posture.Posture) bool
	LongPressUsesProx() bool
	PulseOnSigMotion() bool
	DoubleTapReportsTouchCoordinates() bool
}

// SecureSettings is the observable settings store
type SecureSettings interface {
	GetIntForUser(key string, def int, userID int) int
	RegisterObserverForUser(key string, obs settings.Observer, userID int)
	UnregisterObserver(obs settings.Observer)
	CurrentUser() int
}

// ProximitySensor is the near/far collaborator
type ProximitySensor interface {
	Register(l proximity.Listener)
	Resume()
	Pause()
	IsRegistered() bool
	IsNear() *bool
	AlertListeners()
	SetSecondarySafe(safe bool)
	Destroy()
}

// PostureController emits device posture changes
type PostureController interface {
	Posture() posture.Posture
	AddCallback(cb posture.Callback) int
	RemoveCallback(id int)
}

// Callback receives pulse requests
type Callback interface {
	OnSensorPulse(reason Reason, screenX, screenY float64, values []float64)
}

// CallbackFunc adapts a function to Callback
type CallbackFunc func(reason Reason, screenX, screenY float64, values []float64)

// OnSensorPulse implements Callback
func (f CallbackFunc) OnSensorPulse(reason Reason, screenX, screenY float64, values []float64) {
	f(reason, screenX, screenY, values)
}

// Log receives doze traces
type Log interface {
	TraceSensor(reason Reason)
	TraceSensorRegisterAttempt(sensor string, registered bool)
	TraceSensorUnregisterAttempt(sensor string, unregistered bool, reason string)
	TracePluginSensorUpdate(sensor string, registered bool)
	TracePostureChanged(p posture.Posture, detail string)
}

// nopLog discards traces
type nopLog struct{}

func (nopLog) TraceSensor(Reason)                                {}
func (nopLog) TraceSensorRegisterAttempt(string, bool)           {}
func (nopLog) TraceSensorUnregisterAttempt(string, bool, string) {}
func (nopLog) TracePluginSensorUpdate(string, bool)              {}
func (nopLog) TracePostureChanged(posture.Posture, string)       {}
