package client

import (
	"sync"
	"time"

	jwtpkg "github.com/recruitment/portal/pkg/jwt"
)

// Role identifiers issued by the backend.
const (
	RoleRecruiter = jwtpkg.RoleRecruiter
	RoleApplicant = jwtpkg.RoleApplicant
)

// Session is an immutable snapshot of the client's auth state. The zero
// value is the anonymous session.
type Session struct {
	Token     string    `json:"token,omitempty"`
	RoleID    int       `json:"role_id,omitempty"`
	HasRole   bool      `json:"has_role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// LoggedIn reports whether a bearer token is held.
func (s Session) LoggedIn() bool {
	return s.Token != ""
}

// Expired reports whether the token carries an expiry that has passed.
// Opaque tokens never expire from the client's point of view.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// RoleName returns a display label for the role identifier.
func (s Session) RoleName() string {
	if !s.HasRole {
		return "none"
	}
	switch s.RoleID {
	case RoleRecruiter:
		return "recruiter"
	case RoleApplicant:
		return "applicant"
	default:
		return "unknown"
	}
}

func (s Session) withRole(id int) Session {
	s.RoleID = id
	s.HasRole = true
	return s
}

func authenticated(token string, roleID *int) Session {
	s := Session{Token: token}
	if roleID != nil {
		s = s.withRole(*roleID)
	}
	if exp, ok := jwtpkg.PeekExpiry(token); ok {
		s.ExpiresAt = exp
	}
	return s
}

// sessionStore holds the current snapshot. Writers replace it whole; the
// last write wins.
type sessionStore struct {
	mu      sync.RWMutex
	current Session
}

func (st *sessionStore) load() Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.current
}

func (st *sessionStore) store(s Session) Session {
	st.mu.Lock()
	st.current = s
	st.mu.Unlock()
	return s
}

func (st *sessionStore) update(fn func(Session) Session) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = fn(st.current)
	return st.current
}
