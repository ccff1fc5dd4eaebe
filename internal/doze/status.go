package doze

import (
	"fmt"
	"io"
	"text/tabwriter"

	"ambientd/internal/posture"
)

// Status is a point-in-time view of the orchestrator
type Status struct {
	Listening                   bool            `json:"listening"`
	ListeningTouchScreenSensors bool            `json:"listeningTouchScreenSensors"`
	ListeningProxSensors        bool            `json:"listeningProxSensors"`
	SelectivelyRegisterProx     bool            `json:"selectivelyRegisterProx"`
	SettingsObserverRegistered  bool            `json:"settingsObserverRegistered"`
	Posture                     posture.Posture `json:"posture"`
	PostureName                 string          `json:"postureName"`
	UdfpsEnrolled               bool            `json:"udfpsEnrolled"`
	ProxRegistered              bool            `json:"proxRegistered"`
	ProxNear                    *bool           `json:"proxNear"`
	Triggers                    []TriggerStatus `json:"triggers"`
}

// Snapshot returns the current state of the orchestrator and its triggers
func (d *DozeSensors) Snapshot() Status {
	st := Status{
		Listening:                   d.listening,
		ListeningTouchScreenSensors: d.listeningTouchScreenSensors,
		ListeningProxSensors:        d.listeningProxSensors,
		SelectivelyRegisterProx:     d.selectivelyRegisterProx,
		SettingsObserverRegistered:  d.settingRegistered,
		Posture:                     d.devicePosture,
		PostureName:                 d.devicePosture.String(),
		UdfpsEnrolled:               d.udfpsEnrolled,
		Triggers:                    make([]TriggerStatus, 0, len(d.triggers)),
	}
	if d.proximity != nil {
		st.ProxRegistered = d.proximity.IsRegistered()
		st.ProxNear = d.proximity.IsNear()
	}
	for _, t := range d.triggers {
		st.Triggers = append(st.Triggers, t.Status())
	}
	return st
}

// Dump writes a human readable state table
func (d *DozeSensors) Dump(w io.Writer) error {
	st := d.Snapshot()
	_, err := fmt.Fprintf(w, "DozeSensors:\n"+
		"  listening=%v touchScreen=%v prox=%v selectiveProx=%v settingsObserver=%v\n"+
		"  posture=%s udfpsEnrolled=%v proxRegistered=%v proxNear=%s\n",
		st.Listening, st.ListeningTouchScreenSensors, st.ListeningProxSensors,
		st.SelectivelyRegisterProx, st.SettingsObserverRegistered,
		st.Posture, st.UdfpsEnrolled, st.ProxRegistered, formatNear(st.ProxNear))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  REASON\tKIND\tSENSOR\tCONFIGURED\tREQUESTED\tREGISTERED\tDISABLED\tIGNORE_SETTING")
	for _, t := range st.Triggers {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%v\t%v\t%v\t%v\t%v\n",
			t.ReasonName, t.Kind, t.Sensor, t.Configured, t.Requested, t.Registered, t.Disabled, t.IgnoresSetting)
	}
	return tw.Flush()
}

func formatNear(near *bool) string {
	if near == nil {
		return "unknown"
	}
	if *near {
		return "near"
	}
	return "far"
}
