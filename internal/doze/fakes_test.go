package doze

import (
	"time"

	"ambientd/internal/posture"
	"ambientd/internal/proximity"
	"ambientd/internal/sensors"
	"ambientd/internal/settings"
)

type sensorCall struct {
	listener sensors.TriggerListener
	sensor   *sensors.Sensor
}

// recordingManager wraps a catalog and records every registration call
type recordingManager struct {
	*sensors.Catalog
	requests []sensorCall
	cancels  []sensorCall
	decline  bool
}

func (m *recordingManager) RequestTriggerSensor(l sensors.TriggerListener, s *sensors.Sensor) bool {
	m.requests = append(m.requests, sensorCall{l, s})
	if m.decline {
		return false
	}
	return m.Catalog.RequestTriggerSensor(l, s)
}

func (m *recordingManager) CancelTriggerSensor(l sensors.TriggerListener, s *sensors.Sensor) bool {
	m.cancels = append(m.cancels, sensorCall{l, s})
	return m.Catalog.CancelTriggerSensor(l, s)
}

func (m *recordingManager) reset() {
	m.requests = nil
	m.cancels = nil
}

func (m *recordingManager) requestCount(s *sensors.Sensor) int {
	n := 0
	for _, c := range m.requests {
		if c.sensor == s {
			n++
		}
	}
	return n
}

func (m *recordingManager) cancelCount(s *sensors.Sensor) int {
	n := 0
	for _, c := range m.cancels {
		if c.sensor == s {
			n++
		}
	}
	return n
}

type fakePluginManager struct {
	listeners map[sensors.PluginType][]sensors.PluginListener
}

func newFakePluginManager() *fakePluginManager {
	return &fakePluginManager{listeners: make(map[sensors.PluginType][]sensors.PluginListener)}
}

func (m *fakePluginManager) RegisterPluginListener(t sensors.PluginType, l sensors.PluginListener) {
	m.listeners[t] = append(m.listeners[t], l)
}

func (m *fakePluginManager) UnregisterPluginListener(t sensors.PluginType, l sensors.PluginListener) {
	list := m.listeners[t]
	for i, existing := range list {
		if existing == l {
			m.listeners[t] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (m *fakePluginManager) deliver(t sensors.PluginType, values ...float64) {
	for _, l := range append([]sensors.PluginListener(nil), m.listeners[t]...) {
		l.OnPluginEvent(sensors.PluginEvent{Type: t, Values: values})
	}
}

type fakeConfig struct {
	enabled             bool
	alwaysOn            bool
	tapTypes            []string
	doubleTapType       string
	longPressType       string
	udfpsLongPressType  string
	quickPickupType     string
	pickupAvailable     bool
	wakeGesture         bool
	quickPickupEnabled  bool
	screenOffUdfps      bool
	wakeLockScreenDelay time.Duration
}

func (c *fakeConfig) Enabled(int) bool                      { return c.enabled }
func (c *fakeConfig) AlwaysOnEnabled(int) bool              { return c.alwaysOn }
func (c *fakeConfig) TapSensorTypeMapping() []string        { return c.tapTypes }
func (c *fakeConfig) DoubleTapSensorType() string           { return c.doubleTapType }
func (c *fakeConfig) LongPressSensorType() string           { return c.longPressType }
func (c *fakeConfig) UdfpsLongPressSensorType() string      { return c.udfpsLongPressType }
func (c *fakeConfig) QuickPickupSensorType() string         { return c.quickPickupType }
func (c *fakeConfig) DozePickupSensorAvailable() bool       { return c.pickupAvailable }
func (c *fakeConfig) WakeScreenGestureAvailable() bool      { return c.wakeGesture }
func (c *fakeConfig) QuickPickupSensorEnabled(int) bool     { return c.quickPickupEnabled }
func (c *fakeConfig) ScreenOffUdfpsEnabled(int) bool        { return c.screenOffUdfps }
func (c *fakeConfig) WakeLockScreenDebounce() time.Duration { return c.wakeLockScreenDelay }

type fakeParams struct {
	selectiveProx     bool
	singleTapUsesProx bool
	longPressUsesProx bool
	pulseOnSigMotion  bool
	doubleTapCoords   bool
}

func (p *fakeParams) SelectivelyRegisterSensorsUsingProx() bool { return p.selectiveProx }
func (p *fakeParams) SingleTapUsesProx(posture.Posture) bool    { return p.singleTapUsesProx }
func (p *fakeParams) LongPressUsesProx() bool                   { return p.longPressUsesProx }
func (p *fakeParams) PulseOnSigMotion() bool                    { return p.pulseOnSigMotion }
func (p *fakeParams) DoubleTapReportsTouchCoordinates() bool    { return p.doubleTapCoords }

type observerRegistration struct {
	key string
	obs settings.Observer
}

// fakeSettings is an in-memory settings store
type fakeSettings struct {
	values        map[string]int
	registrations []observerRegistration
	registerCalls map[string]int
	unregisters   int
	currentUser   int
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		values:        make(map[string]int),
		registerCalls: make(map[string]int),
	}
}

func (s *fakeSettings) GetIntForUser(key string, def int, userID int) int {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

func (s *fakeSettings) RegisterObserverForUser(key string, obs settings.Observer, userID int) {
	s.registerCalls[key]++
	s.registrations = append(s.registrations, observerRegistration{key, obs})
}

func (s *fakeSettings) UnregisterObserver(obs settings.Observer) {
	s.unregisters++
	kept := s.registrations[:0]
	for _, r := range s.registrations {
		if r.obs != obs {
			kept = append(kept, r)
		}
	}
	s.registrations = kept
}

func (s *fakeSettings) CurrentUser() int { return s.currentUser }

func (s *fakeSettings) put(key string, value int, userID int) {
	s.values[key] = value
	for _, r := range append([]observerRegistration(nil), s.registrations...) {
		if r.key == key {
			r.obs.OnChange(key, userID)
		}
	}
}

type fakeProximity struct {
	listeners     []proximity.Listener
	registered    bool
	resumes       int
	pauses        int
	alerts        int
	destroyed     bool
	secondarySafe bool
	near          *bool
}

func (p *fakeProximity) Register(l proximity.Listener) { p.listeners = append(p.listeners, l) }
func (p *fakeProximity) Resume()                       { p.resumes++; p.registered = true }
func (p *fakeProximity) Pause()                        { p.pauses++; p.registered = false }
func (p *fakeProximity) IsRegistered() bool            { return p.registered }
func (p *fakeProximity) IsNear() *bool                 { return p.near }
func (p *fakeProximity) AlertListeners()               { p.alerts++ }
func (p *fakeProximity) SetSecondarySafe(safe bool)    { p.secondarySafe = safe }
func (p *fakeProximity) Destroy()                      { p.destroyed = true; p.registered = false }

type pulse struct {
	reason  Reason
	screenX float64
	screenY float64
	values  []float64
}

type recordingCallback struct {
	pulses []pulse
}

func (c *recordingCallback) OnSensorPulse(reason Reason, screenX, screenY float64, values []float64) {
	c.pulses = append(c.pulses, pulse{reason, screenX, screenY, values})
}

func (c *recordingCallback) count(reason Reason) int {
	n := 0
	for _, p := range c.pulses {
		if p.reason == reason {
			n++
		}
	}
	return n
}

// fakeTrigger records the orchestrator's calls
type fakeTrigger struct {
	reason              Reason
	requiresTouchscreen bool
	setListeningCalls   []bool
	observerCalls       int
	unobserveCalls      int
	disableCalls        []time.Time
	postures            []posture.Posture
}

func (f *fakeTrigger) Kind() Kind                { return KindNative }
func (f *fakeTrigger) Reason() Reason            { return f.reason }
func (f *fakeTrigger) Setting() string           { return "fake" }
func (f *fakeTrigger) RequiresTouchscreen() bool { return f.requiresTouchscreen }
func (f *fakeTrigger) RequiresProx() bool        { return false }
func (f *fakeTrigger) Requested() bool {
	return len(f.setListeningCalls) > 0 && f.setListeningCalls[len(f.setListeningCalls)-1]
}
func (f *fakeTrigger) Registered() bool { return false }
func (f *fakeTrigger) SetListening(listen bool) {
	f.setListeningCalls = append(f.setListeningCalls, listen)
}
func (f *fakeTrigger) UpdateListening()   {}
func (f *fakeTrigger) SetDisabled(bool)   {}
func (f *fakeTrigger) SetConfigured(bool) {}
func (f *fakeTrigger) IgnoreSetting(bool) {}
func (f *fakeTrigger) SetPosture(p posture.Posture) bool {
	f.postures = append(f.postures, p)
	return false
}
func (f *fakeTrigger) RegisterSettingsObserver(settings.Observer) { f.observerCalls++ }
func (f *fakeTrigger) UnregisterSettingsObserver()                { f.unobserveCalls++ }
func (f *fakeTrigger) RequestTemporaryDisable(now time.Time) {
	f.disableCalls = append(f.disableCalls, now)
}
func (f *fakeTrigger) Status() TriggerStatus { return TriggerStatus{Reason: f.reason} }

// fakeClock is a manually advanced clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type traceLog struct {
	registers   []string
	unregisters []string
	plugins     []bool
	postures    []posture.Posture
	sensors     []Reason
}

func (l *traceLog) TraceSensor(reason Reason) { l.sensors = append(l.sensors, reason) }
func (l *traceLog) TraceSensorRegisterAttempt(sensor string, registered bool) {
	l.registers = append(l.registers, sensor)
}
func (l *traceLog) TraceSensorUnregisterAttempt(sensor string, unregistered bool, reason string) {
	l.unregisters = append(l.unregisters, sensor)
}
func (l *traceLog) TracePluginSensorUpdate(sensor string, registered bool) {
	l.plugins = append(l.plugins, registered)
}
func (l *traceLog) TracePostureChanged(p posture.Posture, detail string) {
	l.postures = append(l.postures, p)
}
