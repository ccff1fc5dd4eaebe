package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"ambientd/internal/doze"
	"ambientd/internal/events"
	"ambientd/internal/posture"
)

// EngineHandler exposes the doze engine. Every engine call runs on the
// engine queue.
type EngineHandler struct {
	s *Server
}

// NewEngineHandler creates new engine handler
func NewEngineHandler(s *Server) *EngineHandler {
	return &EngineHandler{s: s}
}

// Status handles GET /api/status
func (h *EngineHandler) Status(w http.ResponseWriter, r *http.Request) {
	var st doze.Status
	if err := h.s.call(r.Context(), func() { st = h.s.deps.Doze.Snapshot() }); err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Dump handles GET /api/status/dump
func (h *EngineHandler) Dump(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	var dumpErr error
	if err := h.s.call(r.Context(), func() { dumpErr = h.s.deps.Doze.Dump(&buf) }); err != nil {
		writeCallError(w, err)
		return
	}
	if dumpErr != nil {
		writeError(w, http.StatusInternalServerError, dumpErr.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

// ListeningRequest is the body of POST /api/listening
type ListeningRequest struct {
	Listen             bool `json:"listen"`
	Touchscreen        bool `json:"touchscreen"`
	LowPowerStateOrOff bool `json:"lowPowerStateOrOff"`
}

// SetListening handles POST /api/listening
func (h *EngineHandler) SetListening(w http.ResponseWriter, r *http.Request) {
	var req ListeningRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.SetListeningWithPowerState(req.Listen, req.Touchscreen, req.LowPowerStateOrOff)
	})
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

// SetTouchscreenListening handles POST /api/listening/touchscreen
func (h *EngineHandler) SetTouchscreenListening(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.SetTouchscreenSensorsListening(req.Enabled)
	})
}

// SetDocking handles POST /api/docking. While docked, touchscreen triggers
// ignore their user setting.
func (h *EngineHandler) SetDocking(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.IgnoreTouchScreenSensorsSettingInterferingWithDocking(req.Enabled)
	})
}

// SetProx handles POST /api/prox
func (h *EngineHandler) SetProx(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.SetProxListening(req.Enabled)
	})
}

var screenStates = map[string]doze.ScreenState{
	"unknown":      doze.ScreenUnknown,
	"off":          doze.ScreenOff,
	"on":           doze.ScreenOn,
	"doze":         doze.ScreenDoze,
	"doze_suspend": doze.ScreenDozeSuspend,
	"vr":           doze.ScreenVR,
	"on_suspend":   doze.ScreenOnSuspend,
}

// SetScreenState handles POST /api/screen
func (h *EngineHandler) SetScreenState(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State string `json:"state"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	state, ok := screenStates[strings.ToLower(req.State)]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown screen state")
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.OnScreenState(state)
	})
}

// SetPosture handles POST /api/posture. The controller notifies the engine
// synchronously, so the change is made on the engine queue.
func (h *EngineHandler) SetPosture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Posture string `json:"posture"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := posture.Parse(req.Posture)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var changed bool
	if err := h.s.call(r.Context(), func() { changed = h.s.deps.Posture.Set(p) }); err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"posture": p.String(), "changed": changed})
}

// SwitchUser handles POST /api/user
func (h *EngineHandler) SwitchUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User int `json:"user"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.User < 0 {
		writeError(w, http.StatusBadRequest, "Invalid user")
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		h.s.deps.Settings.SetCurrentUser(req.User)
		d.OnUserSwitched()
	})
}

// SetEnrollments handles POST /api/enrollments
func (h *EngineHandler) SetEnrollments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UdfpsEnrolled bool `json:"udfpsEnrolled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.OnEnrollmentsChanged(req.UdfpsEnrolled)
	})
}

// TemporaryDisable handles POST /api/temporary-disable
func (h *EngineHandler) TemporaryDisable(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.RequestTemporaryDisable()
	})
}

// apply runs fn on the engine queue and responds with the new status
func (h *EngineHandler) apply(w http.ResponseWriter, r *http.Request, fn func(d *doze.DozeSensors)) {
	var st doze.Status
	err := h.s.call(r.Context(), func() {
		fn(h.s.deps.Doze)
		st = h.s.deps.Doze.Snapshot()
	})
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SetAlwaysOn handles POST /api/always-on. The value is saved to the
// config file before the engine re-reads its capabilities.
func (h *EngineHandler) SetAlwaysOn(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.s.deps.Config.SetAlwaysOn(req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.s.deps.Events.Add(events.EventConfig, "", "", true, fmt.Sprintf("always_on=%v", req.Enabled))
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.OnAmbientConfigChanged()
	})
}

// ReloadConfig handles POST /api/config/reload
func (h *EngineHandler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.s.deps.Config.Reload(); err != nil {
		h.s.deps.Events.Add(events.EventConfig, "", "", false, err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.s.deps.Events.Add(events.EventConfig, "", "", true, "reloaded")
	h.apply(w, r, func(d *doze.DozeSensors) {
		d.OnAmbientConfigChanged()
	})
}
