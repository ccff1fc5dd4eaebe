package doze

import "fmt"

// Reason is the pulse reason reported with every sensor pulse
type Reason int

const (
	ReasonNone           Reason = -1
	ReasonIntent         Reason = 0
	ReasonNotification   Reason = 1
	ReasonSigMotion      Reason = 2
	ReasonPickup         Reason = 3
	ReasonDoubleTap      Reason = 4
	ReasonLongPress      Reason = 5
	ReasonDocking        Reason = 6
	ReasonWakeReach      Reason = 7
	ReasonWakeUpPresence Reason = 8
	ReasonTap            Reason = 9
	ReasonUdfpsLongPress Reason = 10
	ReasonQuickPickup    Reason = 11
	reasonCount                 = 12
)

var reasonNames = [reasonCount]string{
	"intent",
	"notification",
	"sigmotion",
	"pickup",
	"doubletap",
	"longpress",
	"docking",
	"wakelockscreen",
	"wakeup-presence",
	"tap",
	"udfps",
	"quickPickup",
}

// String implements fmt.Stringer
func (r Reason) String() string {
	if r >= 0 && r < reasonCount {
		return reasonNames[r]
	}
	if r == ReasonNone {
		return "none"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// ScreenState is the display power state
type ScreenState int

const (
	ScreenUnknown ScreenState = iota
	ScreenOff
	ScreenOn
	ScreenDoze
	ScreenDozeSuspend
	ScreenVR
	ScreenOnSuspend
)

// Setting keys consulted by the default trigger set
const (
	SettingPickUpGesture      = "doze_pulse_on_pick_up"
	SettingDoubleTapGesture   = "doze_pulse_on_double_tap"
	SettingTapGesture         = "doze_tap_gesture"
	SettingLongPress          = "doze_pulse_on_long_press"
	SettingPulseOnAuth        = "doze_pulse_on_auth"
	SettingWakeDisplayGesture = "doze_wake_screen_gesture"
	SettingWakeLockScreen     = "doze_wake_lock_screen_gesture"
	SettingQuickPickupGesture = "doze_quick_pickup_gesture"
)
