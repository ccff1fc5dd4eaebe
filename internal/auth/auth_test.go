package auth

import (
	"net/http"
	"net/http/httptest"
	"os/user"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateToken(&User{Username: "ops", UID: "1000", Role: RoleAdmin})
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateToken(&User{Username: "ops", Role: RoleReadOnly})
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager("secret", -time.Minute)
	old, err := expired.GenerateToken(&User{Username: "ops"})
	require.NoError(t, err)
	_, err = m.ValidateToken(old)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = m.GenerateToken(&User{})
	assert.Error(t, err)
}

func TestJWTRefresh(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateToken(&User{Username: "ops", Role: RoleAdmin})
	require.NoError(t, err)

	refreshed, err := m.RefreshToken(token)
	require.NoError(t, err)
	claims, err := m.ValidateToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func whoami(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write([]byte(user.Username))
}

func TestRequireAuth(t *testing.T) {
	jwtManager := NewJWTManager("secret", time.Hour)
	mw := NewMiddleware(jwtManager, nil, false)
	handler := mw.RequireAuth(http.HandlerFunc(whoami))
	token, err := jwtManager.GenerateToken(&User{Username: "ops", Role: RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"lowercase bearer", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusOK},
		{"basic", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, http.StatusOK},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ops", w.Body.String())
			}
		})
	}
}

func TestRequireAuthNoAuth(t *testing.T) {
	mw := NewMiddleware(NewJWTManager("secret", time.Hour), nil, true)
	w := httptest.NewRecorder()
	mw.RequireAuth(http.HandlerFunc(whoami)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	mw := NewMiddleware(NewJWTManager("secret", time.Hour), nil, false)
	handler := mw.RequireAdmin(http.HandlerFunc(whoami))

	for _, tt := range []struct {
		user   *User
		status int
	}{
		{nil, http.StatusUnauthorized},
		{&User{Username: "viewer", Role: RoleReadOnly}, http.StatusForbidden},
		{&User{Username: "ops", Role: RoleAdmin}, http.StatusOK},
	} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.user != nil {
			r = r.WithContext(SetUserContext(r.Context(), tt.user))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, tt.status, w.Code)
	}
}

func TestRequireAuthBlocksAfterFailures(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := newFailureLimiter(func() time.Time { return now })
	mw := NewMiddleware(NewJWTManager("secret", time.Hour), limiter, false)
	handler := mw.RequireAuth(http.HandlerFunc(whoami))

	send := func() int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:5555"
		r.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusUnauthorized, send())
	}
	assert.Equal(t, http.StatusTooManyRequests, send())

	now = now.Add(5*time.Minute + time.Second)
	assert.Equal(t, http.StatusUnauthorized, send())
}

func TestFailureLimiterWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := newFailureLimiter(func() time.Time { return now })

	for i := 0; i < 4; i++ {
		rl.RecordFailure("a")
	}
	blocked, _ := rl.Blocked("a")
	assert.False(t, blocked)

	// window expired, counting restarts
	now = now.Add(3 * time.Minute)
	rl.RecordFailure("a")
	blocked, _ = rl.Blocked("a")
	assert.False(t, blocked)

	for i := 0; i < 4; i++ {
		rl.RecordFailure("a")
	}
	blocked, remaining := rl.Blocked("a")
	assert.True(t, blocked)
	assert.Equal(t, 301, remaining)

	rl.Reset("a")
	blocked, _ = rl.Blocked("a")
	assert.False(t, blocked)

	rl.RecordFailure("b")
	now = now.Add(time.Hour)
	rl.cleanup()
	assert.Empty(t, rl.attempts)
}

func TestStreamTickets(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := newStreamTicketStore(func() time.Time { return now })

	ticket, err := s.Generate(&User{Username: "ops", Role: RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, ticket, 2*StreamTicketLength)

	user, ok := s.Validate(ticket)
	require.True(t, ok)
	assert.Equal(t, "ops", user.Username)

	// one-time use
	_, ok = s.Validate(ticket)
	assert.False(t, ok)

	expired, err := s.Generate(&User{Username: "ops"})
	require.NoError(t, err)
	now = now.Add(StreamTicketTTL + time.Second)
	_, ok = s.Validate(expired)
	assert.False(t, ok)

	_, err = s.Generate(&User{Username: "ops"})
	require.NoError(t, err)
	now = now.Add(StreamTicketTTL + time.Second)
	s.cleanup()
	assert.Empty(t, s.tickets)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleReadOnly, ParseRole("readonly"))
	assert.Equal(t, RoleReadOnly, ParseRole("root"))
}

func TestPAMAuthRoles(t *testing.T) {
	p := NewPAMAuth()
	assert.Equal(t, RoleAdmin, p.determineRole(&user.User{Username: "root", Uid: "0"}))

	current, err := user.Current()
	require.NoError(t, err)
	if current.Username == "root" {
		t.Skip("group based roles need a non-root user")
	}
	if groups, err := current.GroupIds(); err != nil || len(groups) == 0 {
		t.Skip("no supplementary groups to check")
	}

	p.lookupGroup = func(gid string) (*user.Group, error) {
		return &user.Group{Gid: gid, Name: "wheel"}, nil
	}
	assert.Equal(t, RoleAdmin, p.determineRole(current))

	p.lookupGroup = func(gid string) (*user.Group, error) {
		return &user.Group{Gid: gid, Name: "users"}, nil
	}
	assert.Equal(t, RoleReadOnly, p.determineRole(current))
}
