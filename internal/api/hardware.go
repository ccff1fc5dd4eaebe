package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ambientd/internal/sensors"
)

// HardwareHandler simulates the sensor hardware: it lists the catalog and
// injects readings
type HardwareHandler struct {
	s *Server
}

// NewHardwareHandler creates new hardware handler
func NewHardwareHandler(s *Server) *HardwareHandler {
	return &HardwareHandler{s: s}
}

// SensorInfo describes one catalog sensor
type SensorInfo struct {
	Name       string  `json:"name"`
	Type       int     `json:"type"`
	StringType string  `json:"stringType"`
	Vendor     string  `json:"vendor,omitempty"`
	WakeUp     bool    `json:"wakeUp"`
	MaxRange   float64 `json:"maxRange"`
	Available  bool    `json:"available"`
	Triggers   int     `json:"triggers"`
}

// List handles GET /api/sensors
func (h *HardwareHandler) List(w http.ResponseWriter, r *http.Request) {
	catalog := h.s.deps.Catalog
	list := catalog.SensorList(sensors.TypeAll)

	result := make([]SensorInfo, 0, len(list))
	for _, s := range list {
		result = append(result, SensorInfo{
			Name:       s.Name,
			Type:       s.Type,
			StringType: s.StringType,
			Vendor:     s.Vendor,
			WakeUp:     s.WakeUp,
			MaxRange:   s.MaxRange,
			Available:  catalog.Available(s),
			Triggers:   catalog.TriggerCount(s),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

type valuesRequest struct {
	Values []float64 `json:"values"`
}

// Dispatch handles POST /api/sensors/{name}/event. Listeners run on the
// engine queue.
func (h *HardwareHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	s := h.sensor(w, r)
	if s == nil {
		return
	}
	var req valuesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var delivered int
	if err := h.s.call(r.Context(), func() {
		delivered = h.s.deps.Catalog.Dispatch(s, req.Values...)
	}); err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor":    s.Name,
		"delivered": delivered,
	})
}

// SetAvailability handles POST /api/sensors/{name}/availability
func (h *HardwareHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	s := h.sensor(w, r)
	if s == nil {
		return
	}
	var req struct {
		Available bool `json:"available"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	h.s.deps.Catalog.SetAvailable(s, req.Available)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sensor":    s.Name,
		"available": req.Available,
	})
}

// PluginEvent handles POST /api/plugins/{type}/event
func (h *HardwareHandler) PluginEvent(w http.ResponseWriter, r *http.Request) {
	if h.s.deps.Plugins == nil {
		writeError(w, http.StatusServiceUnavailable, "Plugin transport not configured")
		return
	}
	name := chi.URLParam(r, "type")
	t, ok := sensors.ParsePluginType(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown plugin sensor: "+name)
		return
	}
	var req valuesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.s.deps.Plugins.Deliver(sensors.PluginEvent{Type: t, Values: req.Values})
	writeJSON(w, http.StatusAccepted, map[string]string{"type": t.String()})
}

// sensor resolves the {name} parameter, writing 404 when it is unknown
func (h *HardwareHandler) sensor(w http.ResponseWriter, r *http.Request) *sensors.Sensor {
	name := chi.URLParam(r, "name")
	s := h.s.deps.Catalog.ByName(name)
	if s == nil {
		writeError(w, http.StatusNotFound, "Unknown sensor: "+name)
	}
	return s
}
