package auth

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/examconnect/portal-client/internal/model"
)

// Session holds the authenticated state of one portal user. It is passed
// explicitly into every component that needs it; there is no ambient global.
// A zero session is anonymous.
type Session struct {
	mu        sync.RWMutex
	token     string
	profile   *model.Profile
	expiresAt time.Time
	listeners []func(*model.Profile)
}

// NewSession returns an empty, anonymous session.
func NewSession() *Session {
	return &Session{}
}

// Token returns the current access token, or "" when anonymous.
// Satisfies api.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Profile returns the current profile, or nil when anonymous.
func (s *Session) Profile() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// ExpiresAt returns the token expiry, or the zero time when the token
// carries no exp claim.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Valid reports whether a token is present and not known to be expired.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return false
	}
	return s.expiresAt.IsZero() || time.Now().Before(s.expiresAt)
}

// Set installs a new token and profile and notifies change listeners.
// The token's exp claim is read without signature verification — the backend
// is the verifier, the client only needs to know when to re-authenticate.
func (s *Session) Set(token string, profile *model.Profile) {
	s.mu.Lock()
	s.token = token
	s.profile = profile
	s.expiresAt = tokenExpiry(token)
	listeners := append([]func(*model.Profile){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(profile)
	}
}

// Clear drops the token and profile and notifies listeners with nil.
func (s *Session) Clear() {
	s.mu.Lock()
	s.token = ""
	s.profile = nil
	s.expiresAt = time.Time{}
	listeners := append([]func(*model.Profile){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(nil)
	}
}

// OnChange registers a listener called whenever the session's profile
// changes (login, profile refresh, logout).
func (s *Session) OnChange(fn func(*model.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
