// Package doze decides which sensors are listened to while the display is
// dozing and turns their events into pulse requests.
//
// The package is not safe for concurrent use. Every call, including sensor
// and settings callbacks, must arrive on one serialized queue.
package doze

import (
	"log"
	"time"

	"ambientd/internal/posture"
	"ambientd/internal/proximity"
	"ambientd/internal/sensors"
	"ambientd/internal/settings"
)

// Deps are the collaborators of DozeSensors
type Deps struct {
	SensorManager SensorManager
	PluginManager PluginSensorManager
	Config        AmbientConfig
	Params        Parameters
	Settings      SecureSettings
	Proximity     ProximitySensor
	Posture       PostureController
	Callback      Callback

	// ProxCallback receives true when proximity reports far
	ProxCallback func(far bool)

	Log    Log
	Logger *log.Logger

	UdfpsEnrolled bool
}

// Option configures DozeSensors
type Option func(*DozeSensors)

// WithClock overrides the clock used for debounce windows
func WithClock(now func() time.Time) Option {
	return func(d *DozeSensors) {
		d.env.now = now
	}
}

// DozeSensors owns the trigger set and applies the global listening policy
type DozeSensors struct {
	env       *env
	params    Parameters
	proximity ProximitySensor
	postures  PostureController
	proxCb    func(far bool)

	triggers []Trigger

	settingsObserver  *settingsObserver
	settingRegistered bool

	listening                   bool
	listeningTouchScreenSensors bool
	listeningProxSensors        bool
	selectivelyRegisterProx     bool

	devicePosture     posture.Posture
	postureCallbackID int
	udfpsEnrolled     bool
	screenOffUdfps    bool
}

// settingsObserver re-evaluates every trigger when a watched setting
// changes for the current user
type settingsObserver struct {
	d *DozeSensors
}

// OnChange implements settings.Observer
func (o *settingsObserver) OnChange(key string, userID int) {
	if userID != o.d.env.settings.CurrentUser() {
		return
	}
	for _, t := range o.d.triggers {
		t.UpdateListening()
	}
}

// New builds the default trigger set. No sensor is registered until
// SetListening is called.
func New(deps Deps, opts ...Option) *DozeSensors {
	e := &env{
		sensorManager: deps.SensorManager,
		pluginManager: deps.PluginManager,
		config:        deps.Config,
		settings:      deps.Settings,
		callback:      deps.Callback,
		log:           deps.Log,
		logger:        deps.Logger,
		now:           time.Now,
	}
	if e.log == nil {
		e.log = nopLog{}
	}

	d := &DozeSensors{
		env:           e,
		params:        deps.Params,
		proximity:     deps.Proximity,
		postures:      deps.Posture,
		proxCb:        deps.ProxCallback,
		udfpsEnrolled: deps.UdfpsEnrolled,
	}
	d.settingsObserver = &settingsObserver{d: d}
	for _, opt := range opts {
		opt(d)
	}

	d.selectivelyRegisterProx = d.params.SelectivelyRegisterSensorsUsingProx()
	d.listeningProxSensors = !d.selectivelyRegisterProx
	d.screenOffUdfps = e.config.ScreenOffUdfpsEnabled(settings.UserCurrent)
	if d.postures != nil {
		d.devicePosture = d.postures.Posture()
	}

	d.triggers = d.defaultTriggers()

	if d.proximity != nil {
		// Don't start listening to proximity until asked to
		d.SetProxListening(false)
		d.proximity.Register(func(e proximity.Event) {
			if d.proxCb != nil {
				d.proxCb(!e.Below)
			}
		})
	}

	if d.postures != nil {
		d.postureCallbackID = d.postures.AddCallback(d.OnPostureChanged)
	}
	return d
}

func (d *DozeSensors) defaultTriggers() []Trigger {
	cfg := d.env.config
	mgr := d.env.sensorManager
	user := settings.UserCurrent

	return []Trigger{
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:    SingleSensor(sensors.FindSensor(mgr, sensors.StringTypeSignificantMotion, "")),
			Configured: d.params.PulseOnSigMotion(),
			Reason:     ReasonSigMotion,
		}),
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:               SingleSensor(sensors.FindSensor(mgr, sensors.StringTypePickUpGesture, "")),
			Setting:               SettingPickUpGesture,
			SettingDefault:        true,
			Configured:            cfg.DozePickupSensorAvailable(),
			Reason:                ReasonPickup,
			ImmediatelyReRegister: true,
		}),
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:                 SingleSensor(d.findSensor(cfg.DoubleTapSensorType())),
			Setting:                 SettingDoubleTapGesture,
			SettingDefault:          true,
			Configured:              true,
			Reason:                  ReasonDoubleTap,
			ReportsTouchCoordinates: d.params.DoubleTapReportsTouchCoordinates(),
			RequiresTouchscreen:     true,
			ImmediatelyReRegister:   true,
		}),
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:                 PostureList(sensors.FindSensors(mgr, cfg.TapSensorTypeMapping())),
			Setting:                 SettingTapGesture,
			SettingDefault:          true,
			Configured:              true,
			Reason:                  ReasonTap,
			ReportsTouchCoordinates: true,
			RequiresTouchscreen:     true,
			RequiresProx:            d.params.SingleTapUsesProx(d.devicePosture),
			ImmediatelyReRegister:   true,
			Posture:                 d.devicePosture,
		}),
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:                 SingleSensor(d.findSensor(cfg.LongPressSensorType())),
			Setting:                 SettingLongPress,
			Configured:              true,
			Reason:                  ReasonLongPress,
			ReportsTouchCoordinates: true,
			RequiresTouchscreen:     true,
			RequiresProx:            d.params.LongPressUsesProx(),
			ImmediatelyReRegister:   true,
		}),
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:                 SingleSensor(d.findSensor(cfg.UdfpsLongPressSensorType())),
			Setting:                 SettingPulseOnAuth,
			SettingDefault:          true,
			Configured:              d.udfpsLongPressConfigured(),
			Reason:                  ReasonUdfpsLongPress,
			ReportsTouchCoordinates: true,
			RequiresTouchscreen:     true,
			RequiresProx:            d.params.LongPressUsesProx(),
		}),
		newPluginSensor(d.env, PluginConfig{
			Type:       sensors.PluginWakeDisplay,
			Setting:    SettingWakeDisplayGesture,
			Configured: cfg.WakeScreenGestureAvailable() && cfg.AlwaysOnEnabled(user),
			Reason:     ReasonWakeUpPresence,
		}),
		newPluginSensor(d.env, PluginConfig{
			Type:       sensors.PluginWakeLockScreen,
			Setting:    SettingWakeLockScreen,
			Configured: cfg.WakeScreenGestureAvailable(),
			Reason:     ReasonWakeReach,
			Debounce:   cfg.WakeLockScreenDebounce(),
		}),
		newTriggerSensor(d.env, TriggerConfig{
			Sensors:               SingleSensor(d.findSensor(cfg.QuickPickupSensorType())),
			Setting:               SettingQuickPickupGesture,
			SettingDefault:        true,
			Configured:            d.quickPickupConfigured(),
			Reason:                ReasonQuickPickup,
			ImmediatelyReRegister: true,
		}),
	}
}

func (d *DozeSensors) findSensor(sensorType string) *sensors.Sensor {
	return sensors.FindSensor(d.env.sensorManager, sensorType, "")
}

func (d *DozeSensors) udfpsLongPressConfigured() bool {
	return d.udfpsEnrolled &&
		(d.env.config.AlwaysOnEnabled(settings.UserCurrent) || d.screenOffUdfps)
}

func (d *DozeSensors) quickPickupConfigured() bool {
	return d.udfpsEnrolled && d.env.config.QuickPickupSensorEnabled(settings.UserCurrent)
}

// CreateDozeSensor builds a native trigger sharing this orchestrator's
// collaborators. It is not added to the trigger set and registers nothing.
func (d *DozeSensors) CreateDozeSensor(cfg TriggerConfig) *TriggerSensor {
	return newTriggerSensor(d.env, cfg)
}

// Triggers returns the trigger set in priority order
func (d *DozeSensors) Triggers() []Trigger {
	return append([]Trigger(nil), d.triggers...)
}

// TriggerFor returns the first trigger with the given reason
func (d *DozeSensors) TriggerFor(reason Reason) (Trigger, bool) {
	for _, t := range d.triggers {
		if t.Reason() == reason {
			return t, true
		}
	}
	return nil, false
}

// SetListening turns the trigger set on or off, optionally including
// sensors that need the touchscreen
func (d *DozeSensors) SetListening(listen, includeTouchScreenSensors bool) {
	d.SetListeningWithPowerState(listen, includeTouchScreenSensors, false)
}

// SetListeningWithPowerState is SetListening with the display power state.
// When selective registration is on, sensors that use proximity are only
// requested while lowPowerStateOrOff is true.
func (d *DozeSensors) SetListeningWithPowerState(listen, includeTouchScreenSensors, lowPowerStateOrOff bool) {
	shouldRegisterProxSensors := !d.selectivelyRegisterProx || lowPowerStateOrOff
	if d.listening == listen &&
		d.listeningTouchScreenSensors == includeTouchScreenSensors &&
		d.listeningProxSensors == shouldRegisterProxSensors {
		return
	}
	d.listening = listen
	d.listeningTouchScreenSensors = includeTouchScreenSensors
	d.listeningProxSensors = shouldRegisterProxSensors
	d.updateListening()
}

func (d *DozeSensors) updateListening() {
	anyListening := false
	for _, t := range d.triggers {
		listen := d.listening &&
			(!t.RequiresTouchscreen() || d.listeningTouchScreenSensors) &&
			(!t.RequiresProx() || d.listeningProxSensors)
		t.SetListening(listen)
		if listen {
			anyListening = true
		}
	}

	if !anyListening {
		d.releaseSettingsObserver()
	} else if !d.settingRegistered {
		for _, t := range d.triggers {
			t.RegisterSettingsObserver(d.settingsObserver)
		}
		d.settingRegistered = true
	}
}

func (d *DozeSensors) releaseSettingsObserver() {
	for _, t := range d.triggers {
		t.UnregisterSettingsObserver()
	}
	d.env.settings.UnregisterObserver(d.settingsObserver)
	d.settingRegistered = false
}

// SetTouchscreenSensorsListening sets the listening state of only the
// triggers that need the touchscreen
func (d *DozeSensors) SetTouchscreenSensorsListening(listening bool) {
	for _, t := range d.triggers {
		if t.RequiresTouchscreen() {
			t.SetListening(listening)
		}
	}
}

// IgnoreTouchScreenSensorsSettingInterferingWithDocking makes touchscreen
// triggers ignore their user setting, used while docked
func (d *DozeSensors) IgnoreTouchScreenSensorsSettingInterferingWithDocking(ignore bool) {
	for _, t := range d.triggers {
		if t.RequiresTouchscreen() {
			t.IgnoreSetting(ignore)
		}
	}
}

// OnUserSwitched re-evaluates every trigger against the new user's settings
func (d *DozeSensors) OnUserSwitched() {
	for _, t := range d.triggers {
		t.UpdateListening()
	}
}

// OnPostureChanged fans a new device posture out to every trigger
func (d *DozeSensors) OnPostureChanged(p posture.Posture) {
	if d.devicePosture == p {
		return
	}
	d.devicePosture = p
	for _, t := range d.triggers {
		if t.SetPosture(p) {
			d.env.logf("Posture %s swapped sensor for %s", p, t.Reason())
		}
	}
}

// OnEnrollmentsChanged reconfigures the triggers that depend on an
// enrolled under-display fingerprint
func (d *DozeSensors) OnEnrollmentsChanged(udfpsEnrolled bool) {
	d.udfpsEnrolled = udfpsEnrolled
	for _, t := range d.triggers {
		switch t.Reason() {
		case ReasonQuickPickup:
			t.SetConfigured(d.quickPickupConfigured())
		case ReasonUdfpsLongPress:
			t.SetConfigured(d.udfpsLongPressConfigured())
		}
	}
}

// OnAmbientConfigChanged re-reads the device capabilities that decide
// whether each trigger is configured, after the ambient configuration was
// edited or reloaded
func (d *DozeSensors) OnAmbientConfigChanged() {
	cfg := d.env.config
	user := settings.UserCurrent
	d.screenOffUdfps = cfg.ScreenOffUdfpsEnabled(user)

	for _, t := range d.triggers {
		switch t.Reason() {
		case ReasonSigMotion:
			t.SetConfigured(d.params.PulseOnSigMotion())
		case ReasonPickup:
			t.SetConfigured(cfg.DozePickupSensorAvailable())
		case ReasonWakeUpPresence:
			t.SetConfigured(cfg.WakeScreenGestureAvailable() && cfg.AlwaysOnEnabled(user))
		case ReasonWakeReach:
			t.SetConfigured(cfg.WakeScreenGestureAvailable())
		case ReasonUdfpsLongPress:
			t.SetConfigured(d.udfpsLongPressConfigured())
		case ReasonQuickPickup:
			t.SetConfigured(d.quickPickupConfigured())
		}
	}
}

// OnScreenState lets proximity use its secondary sensor while dozing or off
func (d *DozeSensors) OnScreenState(state ScreenState) {
	if d.proximity == nil {
		return
	}
	d.proximity.SetSecondarySafe(state == ScreenDoze || state == ScreenDozeSuspend || state == ScreenOff)
}

// SetProxListening resumes or pauses the proximity collaborator. When it is
// already registered, enabling re-sends the last reading instead.
func (d *DozeSensors) SetProxListening(listen bool) {
	if d.proximity == nil {
		return
	}
	if d.proximity.IsRegistered() && listen {
		d.proximity.AlertListeners()
		return
	}
	if listen {
		d.proximity.Resume()
	} else {
		d.proximity.Pause()
	}
}

// IsProximityCurrentlyNear returns the last proximity state, nil if unknown
func (d *DozeSensors) IsProximityCurrentlyNear() *bool {
	if d.proximity == nil {
		return nil
	}
	return d.proximity.IsNear()
}

// RequestTemporaryDisable starts the debounce window of every debounced
// trigger
func (d *DozeSensors) RequestTemporaryDisable() {
	now := d.env.now()
	for _, t := range d.triggers {
		t.RequestTemporaryDisable(now)
	}
}

// Destroy unregisters everything and detaches from collaborators
func (d *DozeSensors) Destroy() {
	for _, t := range d.triggers {
		t.SetListening(false)
	}
	d.listening = false
	d.releaseSettingsObserver()

	if d.proximity != nil {
		d.proximity.Destroy()
	}
	if d.postures != nil && d.postureCallbackID != 0 {
		d.postures.RemoveCallback(d.postureCallbackID)
		d.postureCallbackID = 0
	}
}
