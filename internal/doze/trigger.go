package doze

import (
	"fmt"
	"log"
	"time"

	"ambientd/internal/posture"
	"ambientd/internal/sensors"
	"ambientd/internal/settings"
)

// Kind is the closed set of trigger implementations
type Kind int

const (
	KindNative Kind = iota
	KindPlugin
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindPlugin:
		return "plugin"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Trigger is a logical sensor the orchestrator can request
type Trigger interface {
	Kind() Kind
	Reason() Reason
	Setting() string
	RequiresTouchscreen() bool
	RequiresProx() bool
	Requested() bool
	Registered() bool

	SetListening(listen bool)
	UpdateListening()
	SetDisabled(disabled bool)
	SetConfigured(configured bool)
	IgnoreSetting(ignore bool)
	SetPosture(p posture.Posture) bool
	RegisterSettingsObserver(obs settings.Observer)
	UnregisterSettingsObserver()
	RequestTemporaryDisable(now time.Time)
	Status() TriggerStatus
}

// TriggerStatus is a point-in-time view of a trigger
type TriggerStatus struct {
	Kind                Kind            `json:"kind"`
	Reason              Reason          `json:"reason"`
	ReasonName          string          `json:"reasonName"`
	Setting             string          `json:"setting,omitempty"`
	Sensor              string          `json:"sensor"`
	Posture             posture.Posture `json:"posture"`
	Configured          bool            `json:"configured"`
	Requested           bool            `json:"requested"`
	Registered          bool            `json:"registered"`
	Disabled            bool            `json:"disabled"`
	IgnoresSetting      bool            `json:"ignoresSetting"`
	RequiresTouchscreen bool            `json:"requiresTouchscreen"`
	RequiresProx        bool            `json:"requiresProx"`
}

// PostureSensors binds a trigger to hardware, optionally per posture.
// The zero value binds nothing.
type PostureSensors struct {
	single    *sensors.Sensor
	byPosture map[posture.Posture]*sensors.Sensor
	invariant bool
}

// SingleSensor binds one sensor for every posture
func SingleSensor(s *sensors.Sensor) PostureSensors {
	return PostureSensors{single: s, invariant: true}
}

// PostureTable binds a sensor per posture. Postures without an entry have
// no sensor.
func PostureTable(table map[posture.Posture]*sensors.Sensor) PostureSensors {
	byPosture := make(map[posture.Posture]*sensors.Sensor, len(table))
	for p, s := range table {
		if s != nil {
			byPosture[p] = s
		}
	}
	return PostureSensors{byPosture: byPosture}
}

// PostureList binds list[i] to posture i. A list of at most one entry is
// posture-invariant.
func PostureList(list []*sensors.Sensor) PostureSensors {
	switch len(list) {
	case 0:
		return PostureSensors{invariant: true}
	case 1:
		return SingleSensor(list[0])
	}
	table := make(map[posture.Posture]*sensors.Sensor, len(list))
	for i, s := range list {
		table[posture.Posture(i)] = s
	}
	return PostureTable(table)
}

// Invariant reports whether the binding ignores posture
func (ps PostureSensors) Invariant() bool {
	return ps.invariant || ps.byPosture == nil
}

// Resolve returns the sensor for the posture, or nil when none is bound
func (ps PostureSensors) Resolve(p posture.Posture) *sensors.Sensor {
	if ps.Invariant() {
		return ps.single
	}
	return ps.byPosture[p]
}

// TriggerConfig is the flat construction tuple for a native trigger
type TriggerConfig struct {
	Sensors                 PostureSensors
	Setting                 string
	SettingDefault          bool
	Configured              bool
	Reason                  Reason
	ReportsTouchCoordinates bool
	RequiresTouchscreen     bool
	IgnoresSetting          bool
	RequiresProx            bool
	ImmediatelyReRegister   bool
	Posture                 posture.Posture
}

// env is the state shared between the orchestrator and its triggers
type env struct {
	sensorManager SensorManager
	pluginManager PluginSensorManager
	config        AmbientConfig
	settings      SecureSettings
	callback      Callback
	log           Log
	logger        *log.Logger
	now           func() time.Time
}

func (e *env) logf(format string, v ...interface{}) {
	if e.logger != nil {
		e.logger.Printf("[doze] "+format, v...)
	}
}

// base holds the gate state common to every trigger kind
type base struct {
	env *env

	setting                 string
	settingDefault          bool
	configured              bool
	reason                  Reason
	reportsTouchCoordinates bool
	requiresTouchscreen     bool
	requiresProx            bool
	immediatelyReRegister   bool

	requested      bool
	registered     bool
	disabled       bool
	ignoresSetting bool

	// observer is non-nil while a settings observer is attached
	observer settings.Observer

	// update re-evaluates registration for the concrete kind
	update func()
}

func (b *base) Reason() Reason            { return b.reason }
func (b *base) Setting() string           { return b.setting }
func (b *base) RequiresTouchscreen() bool { return b.requiresTouchscreen }
func (b *base) RequiresProx() bool        { return b.requiresProx }
func (b *base) Requested() bool           { return b.requested }
func (b *base) Registered() bool          { return b.registered }

// SetListening requests or releases the trigger
func (b *base) SetListening(listen bool) {
	if b.requested == listen {
		return
	}
	b.requested = listen
	b.update()
}

// SetDisabled suspends the trigger without dropping the request
func (b *base) SetDisabled(disabled bool) {
	if b.disabled == disabled {
		return
	}
	b.disabled = disabled
	b.update()
}

// SetConfigured updates whether the device supports the trigger at all
func (b *base) SetConfigured(configured bool) {
	if b.configured == configured {
		return
	}
	b.configured = configured
	b.update()
}

// IgnoreSetting bypasses the user setting
func (b *base) IgnoreSetting(ignore bool) {
	if b.ignoresSetting == ignore {
		return
	}
	b.ignoresSetting = ignore
	b.update()
}

// RegisterSettingsObserver attaches obs to the trigger's setting.
// Only the first call on an instance attaches anything.
func (b *base) RegisterSettingsObserver(obs settings.Observer) {
	if b.observer != nil || obs == nil {
		return
	}
	if b.configured && b.setting != "" {
		b.env.settings.RegisterObserverForUser(b.setting, obs, settings.UserAll)
		b.observer = obs
	}
}

// UnregisterSettingsObserver releases the attachment made by
// RegisterSettingsObserver
func (b *base) UnregisterSettingsObserver() {
	if b.observer == nil {
		return
	}
	b.env.settings.UnregisterObserver(b.observer)
	b.observer = nil
}

func (b *base) enabledBySetting() bool {
	if !b.env.config.Enabled(settings.UserCurrent) {
		return false
	}
	if b.setting == "" {
		return true
	}
	def := 0
	if b.settingDefault {
		def = 1
	}
	return b.env.settings.GetIntForUser(b.setting, def, settings.UserCurrent) != 0
}

// wantsRegistration is the policy half of the registration gate
func (b *base) wantsRegistration() bool {
	return b.configured && b.requested && !b.disabled && (b.ignoresSetting || b.enabledBySetting())
}

func (b *base) status(kind Kind) TriggerStatus {
	return TriggerStatus{
		Kind:                kind,
		Reason:              b.reason,
		ReasonName:          b.reason.String(),
		Setting:             b.setting,
		Configured:          b.configured,
		Requested:           b.requested,
		Registered:          b.registered,
		Disabled:            b.disabled,
		IgnoresSetting:      b.ignoresSetting,
		RequiresTouchscreen: b.requiresTouchscreen,
		RequiresProx:        b.requiresProx,
	}
}

// TriggerSensor is a trigger backed by native one-shot trigger sensors
type TriggerSensor struct {
	base
	sensors PostureSensors
	posture posture.Posture

	// active is the sensor holding the live registration
	active *sensors.Sensor
}

func newTriggerSensor(e *env, cfg TriggerConfig) *TriggerSensor {
	t := &TriggerSensor{
		base: base{
			env:                     e,
			setting:                 cfg.Setting,
			settingDefault:          cfg.SettingDefault,
			configured:              cfg.Configured,
			reason:                  cfg.Reason,
			reportsTouchCoordinates: cfg.ReportsTouchCoordinates,
			requiresTouchscreen:     cfg.RequiresTouchscreen,
			ignoresSetting:          cfg.IgnoresSetting,
			requiresProx:            cfg.RequiresProx,
			immediatelyReRegister:   cfg.ImmediatelyReRegister,
		},
		sensors: cfg.Sensors,
		posture: cfg.Posture,
	}
	t.update = t.UpdateListening
	return t
}

// Kind implements Trigger
func (t *TriggerSensor) Kind() Kind { return KindNative }

// Posture returns the posture the trigger currently resolves against
func (t *TriggerSensor) Posture() posture.Posture { return t.posture }

// Sensor returns the sensor bound for the current posture
func (t *TriggerSensor) Sensor() *sensors.Sensor { return t.sensors.Resolve(t.posture) }

// UpdateListening registers or unregisters to match the current gate
func (t *TriggerSensor) UpdateListening() {
	s := t.sensors.Resolve(t.posture)

	if s == nil || !t.wantsRegistration() {
		if t.registered {
			t.cancel("gate closed")
		}
		return
	}

	if t.registered {
		if t.active == s {
			return
		}
		t.cancel("sensor changed")
	}

	t.registered = t.env.sensorManager.RequestTriggerSensor(t, s)
	if t.registered {
		t.active = s
	}
	t.env.log.TraceSensorRegisterAttempt(s.String(), t.registered)
}

func (t *TriggerSensor) cancel(why string) {
	rt := t.env.sensorManager.CancelTriggerSensor(t, t.active)
	t.env.log.TraceSensorUnregisterAttempt(t.active.String(), rt, why)
	t.registered = false
	t.active = nil
}

// SetPosture switches the posture and swaps the registration when the
// posture resolves to a different sensor. Returns true iff the sensor
// changed.
func (t *TriggerSensor) SetPosture(p posture.Posture) bool {
	if t.posture == p || t.sensors.Invariant() || !p.Valid() {
		return false
	}

	oldSensor := t.sensors.Resolve(t.posture)
	newSensor := t.sensors.Resolve(p)
	if oldSensor == newSensor {
		t.posture = p
		return false
	}

	if t.registered {
		t.cancel("posture changed")
	}

	t.posture = p
	t.UpdateListening()
	t.env.log.TracePostureChanged(p, fmt.Sprintf("DozeSensors swap {%s} => {%s}, registered=%v",
		oldSensor, newSensor, t.registered))
	return true
}

// RequestTemporaryDisable implements Trigger; native triggers are not
// debounced
func (t *TriggerSensor) RequestTemporaryDisable(now time.Time) {}

// OnTrigger implements sensors.TriggerListener
func (t *TriggerSensor) OnTrigger(event sensors.Event) {
	t.env.log.TraceSensor(t.reason)

	// Trigger registrations are consumed by the event
	t.registered = false
	t.active = nil

	screenX, screenY := -1.0, -1.0
	if t.reportsTouchCoordinates && len(event.Values) >= 2 {
		screenX = event.Values[0]
		screenY = event.Values[1]
	}
	t.env.callback.OnSensorPulse(t.reason, screenX, screenY, event.Values)

	if !t.registered && t.immediatelyReRegister {
		t.UpdateListening()
	}
}

// Status implements Trigger
func (t *TriggerSensor) Status() TriggerStatus {
	st := t.status(KindNative)
	st.Sensor = t.sensors.Resolve(t.posture).String()
	st.Posture = t.posture
	return st
}
