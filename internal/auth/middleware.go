package auth

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
	CookieName     string     = "ambientd_token"
)

// Middleware handles authentication for protected routes
type Middleware struct {
	jwtManager *JWTManager
	limiter    *FailureLimiter
	noAuth     bool
}

// NewMiddleware creates new auth middleware. limiter may be nil.
func NewMiddleware(jwtManager *JWTManager, limiter *FailureLimiter, noAuth bool) *Middleware {
	return &Middleware{jwtManager: jwtManager, limiter: limiter, noAuth: noAuth}
}

// RequireAuth middleware checks for a valid JWT in the Authorization
// header or the auth cookie
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.noAuth {
			next.ServeHTTP(w, r.WithContext(SetUserContext(r.Context(), anonymous)))
			return
		}

		ip := ClientIP(r)
		if m.limiter != nil {
			if blocked, remaining := m.limiter.Blocked(ip); blocked {
				w.Header().Set("Retry-After", strconv.Itoa(remaining))
				http.Error(w, "Too many failed attempts", http.StatusTooManyRequests)
				return
			}
		}

		token := TokenFromRequest(r)
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			if m.limiter != nil {
				m.limiter.RecordFailure(ip)
			}
			ClearAuthCookie(w)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user := &User{
			Username: claims.Username,
			UID:      claims.UID,
			Role:     claims.Role,
		}
		next.ServeHTTP(w, r.WithContext(SetUserContext(r.Context(), user)))
	})
}

// RequireAdmin middleware checks for admin role
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !user.IsAdmin() {
			http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest returns the bearer token, falling back to the cookie
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// ClientIP returns the remote address without port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// GetUserFromContext extracts user from request context
func GetUserFromContext(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// SetUserContext adds user to context
func SetUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// SetAuthCookie sets JWT token in HttpOnly cookie
// Automatically sets Secure flag when request is over HTTPS
func SetAuthCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	})
}

// ClearAuthCookie removes auth cookie
func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
