package api

import (
	"net/http"
	"strconv"

	"ambientd/internal/auth"
	"ambientd/internal/events"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	limiter       *auth.FailureLimiter
	tickets       *auth.StreamTicketStore
	eventStore    *events.Store
}

// NewAuthHandler creates new auth handler
func NewAuthHandler(authenticator auth.Authenticator, jwtManager *auth.JWTManager, limiter *auth.FailureLimiter, tickets *auth.StreamTicketStore, eventStore *events.Store) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		limiter:       limiter,
		tickets:       tickets,
		eventStore:    eventStore,
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Token   string     `json:"token,omitempty"`
	User    *auth.User `json:"user,omitempty"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := auth.ClientIP(r)

	// Reject blocked clients before touching PAM
	if blocked, remaining := h.limiter.Blocked(clientIP); blocked {
		w.Header().Set("Retry-After", strconv.Itoa(remaining))
		writeJSON(w, http.StatusTooManyRequests, LoginResponse{Message: "Too many login attempts"})
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, LoginResponse{Message: "Username and password are required"})
		return
	}

	user, err := h.authenticator.Authenticate(req.Username, req.Password)
	if err != nil {
		h.limiter.RecordFailure(clientIP)
		h.eventStore.Add(events.EventLoginFailed, "", "", false, req.Username+" from "+clientIP)
		writeJSON(w, http.StatusUnauthorized, LoginResponse{Message: "Invalid username or password"})
		return
	}
	h.limiter.Reset(clientIP)

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, LoginResponse{Message: "Failed to generate token"})
		return
	}
	auth.SetAuthCookie(w, r, token, int(h.jwtManager.TokenDuration().Seconds()))
	h.eventStore.Add(events.EventLogin, "", "", true, user.Username+" from "+clientIP)

	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, User: user})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Refresh handles POST /api/auth/refresh. Without auth there is no token
// to refresh, so one is minted for the anonymous operator.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var token string
	var err error
	if current := auth.TokenFromRequest(r); current != "" {
		token, err = h.jwtManager.RefreshToken(current)
	} else {
		token, err = h.jwtManager.GenerateToken(user)
	}
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Failed to refresh token")
		return
	}
	auth.SetAuthCookie(w, r, token, int(h.jwtManager.TokenDuration().Seconds()))
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// StreamTicket handles GET /api/auth/stream-ticket
func (h *AuthHandler) StreamTicket(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	ticket, err := h.tickets.Generate(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}
