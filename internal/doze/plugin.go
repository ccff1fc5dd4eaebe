package doze

import (
	"time"

	"ambientd/internal/posture"
	"ambientd/internal/sensors"
)

// PluginConfig is the construction tuple for a plugin-backed trigger
type PluginConfig struct {
	Type                    sensors.PluginType
	Setting                 string
	Configured              bool
	Reason                  Reason
	ReportsTouchCoordinates bool
	RequiresTouchscreen     bool
	Debounce                time.Duration
}

// IsSuppressed reports whether an event at now falls inside the
// temporary-disable window ending at deadline
func IsSuppressed(now, deadline time.Time) bool {
	return now.Before(deadline)
}

// PluginSensor is a trigger whose events arrive through a plugin transport.
// Events delivered while a temporary disable is active are dropped.
type PluginSensor struct {
	base
	pluginType sensors.PluginType
	debounce   time.Duration
	deadline   time.Time
}

func newPluginSensor(e *env, cfg PluginConfig) *PluginSensor {
	p := &PluginSensor{
		base: base{
			env:                     e,
			setting:                 cfg.Setting,
			settingDefault:          true,
			configured:              cfg.Configured,
			reason:                  cfg.Reason,
			reportsTouchCoordinates: cfg.ReportsTouchCoordinates,
			requiresTouchscreen:     cfg.RequiresTouchscreen,
		},
		pluginType: cfg.Type,
		debounce:   cfg.Debounce,
	}
	p.update = p.UpdateListening
	return p
}

// Kind implements Trigger
func (p *PluginSensor) Kind() Kind { return KindPlugin }

// PluginType returns the plugin sensor type this trigger listens to
func (p *PluginSensor) PluginType() sensors.PluginType { return p.pluginType }

// Deadline returns the end of the current temporary-disable window
func (p *PluginSensor) Deadline() time.Time { return p.deadline }

// UpdateListening registers or unregisters the plugin listener to match
// the current gate
func (p *PluginSensor) UpdateListening() {
	want := p.wantsRegistration()
	switch {
	case want && !p.registered:
		p.env.pluginManager.RegisterPluginListener(p.pluginType, p)
		p.registered = true
		p.env.log.TracePluginSensorUpdate(p.pluginType.String(), true)
	case !want && p.registered:
		p.env.pluginManager.UnregisterPluginListener(p.pluginType, p)
		p.registered = false
		p.env.log.TracePluginSensorUpdate(p.pluginType.String(), false)
	}
}

// SetPosture implements Trigger; plugin sensors do not depend on posture
func (p *PluginSensor) SetPosture(posture.Posture) bool { return false }

// RequestTemporaryDisable drops events until now plus the debounce interval
func (p *PluginSensor) RequestTemporaryDisable(now time.Time) {
	p.deadline = now.Add(p.debounce)
}

// OnPluginEvent implements sensors.PluginListener
func (p *PluginSensor) OnPluginEvent(event sensors.PluginEvent) {
	if IsSuppressed(p.env.now(), p.deadline) {
		return
	}
	p.env.log.TraceSensor(p.reason)
	p.env.callback.OnSensorPulse(p.reason, -1, -1, event.Values)
}

// Status implements Trigger
func (p *PluginSensor) Status() TriggerStatus {
	st := p.status(KindPlugin)
	st.Sensor = p.pluginType.String()
	return st
}
