package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// SettingsHandler handles per-user settings endpoints
type SettingsHandler struct {
	s *Server
}

// NewSettingsHandler creates new settings handler
func NewSettingsHandler(s *Server) *SettingsHandler {
	return &SettingsHandler{s: s}
}

// userParam returns the user from the query, the current user by default
func (h *SettingsHandler) userParam(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("user")
	if v == "" {
		return h.s.deps.Settings.CurrentUser(), true
	}
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// List handles GET /api/settings?user=0
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user")
		return
	}

	values, err := h.s.deps.Settings.List(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":     userID,
		"settings": values,
	})
}

// Put handles PUT /api/settings/{key}?user=0. Observers run on the engine
// queue.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	userID, ok := h.userParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid user")
		return
	}

	var req struct {
		Value *int `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "Missing value")
		return
	}

	var putErr error
	if err := h.s.call(r.Context(), func() {
		putErr = h.s.deps.Settings.PutIntForUser(key, *req.Value, userID)
	}); err != nil {
		writeCallError(w, err)
		return
	}
	if putErr != nil {
		writeError(w, http.StatusBadRequest, putErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"key":   key,
		"value": *req.Value,
		"user":  userID,
	})
}
