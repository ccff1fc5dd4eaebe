package config

import (
	"time"

	"ambientd/internal/posture"
)

// The user argument of the ambient getters is accepted for interface
// compatibility; the .env file holds a single device-wide configuration.

// Enabled reports whether any ambient display mode is on.
func (c *Config) Enabled(userID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dozeEnabled || c.alwaysOn
}

// AlwaysOnEnabled reports whether always-on display is on.
func (c *Config) AlwaysOnEnabled(userID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alwaysOn
}

// TapSensorTypeMapping returns the tap sensor type per posture index.
func (c *Config) TapSensorTypeMapping() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.tapSensorTypes...)
}

// DoubleTapSensorType returns the double tap sensor type.
func (c *Config) DoubleTapSensorType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doubleTapSensorType
}

// LongPressSensorType returns the long press sensor type.
func (c *Config) LongPressSensorType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.longPressSensorType
}

// UdfpsLongPressSensorType returns the fingerprint long press sensor type.
func (c *Config) UdfpsLongPressSensorType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.udfpsLongPressType
}

// QuickPickupSensorType returns the quick pickup sensor type.
func (c *Config) QuickPickupSensorType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quickPickupSensorType
}

// DozePickupSensorAvailable reports whether pickup pulses are supported.
func (c *Config) DozePickupSensorAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pickupAvailable
}

// WakeScreenGestureAvailable reports whether wake gestures are supported.
func (c *Config) WakeScreenGestureAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wakeGestureAvailable
}

// QuickPickupSensorEnabled reports whether quick pickup is turned on.
func (c *Config) QuickPickupSensorEnabled(userID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quickPickupEnabled && c.quickPickupSensorType != ""
}

// ScreenOffUdfpsEnabled reports whether the fingerprint sensor works with
// the screen off.
func (c *Config) ScreenOffUdfpsEnabled(userID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screenOffUdfps
}

// WakeLockScreenDebounce returns the temporary-disable window of the wake
// lock screen gesture.
func (c *Config) WakeLockScreenDebounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wakeLockScreenDebounce
}

// SelectivelyRegisterSensorsUsingProx reports whether sensors that need
// proximity only register in low power states.
func (c *Config) SelectivelyRegisterSensorsUsingProx() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectiveProx
}

// SingleTapUsesProx reports whether the tap sensor needs proximity in p.
func (c *Config) SingleTapUsesProx(p posture.Posture) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, candidate := range c.singleTapProxPostures {
		if candidate == p {
			return true
		}
	}
	return false
}

// LongPressUsesProx reports whether long press needs proximity.
func (c *Config) LongPressUsesProx() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.longPressProx
}

// PulseOnSigMotion reports whether significant motion pulses the display.
func (c *Config) PulseOnSigMotion() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pulseOnSigMotion
}

// DoubleTapReportsTouchCoordinates reports whether double tap events carry
// screen coordinates.
func (c *Config) DoubleTapReportsTouchCoordinates() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doubleTapReportsCoords
}
