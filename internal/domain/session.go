package domain

import "time"

// Session is the authenticated-state record persisted under currentUser.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	LoginTime time.Time `json:"loginTime"`
}

// NewSession starts a session for id at now.
func NewSession(id *Identity, now time.Time) *Session {
	return &Session{
		ID:        id.ID,
		Name:      id.Name,
		Email:     id.Email,
		LoginTime: now,
	}
}

// Age returns how long ago the session was established.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.LoginTime)
}

// Expired reports whether the session is older than maxAge. A session
// exactly maxAge old is still valid.
func (s *Session) Expired(now time.Time, maxAge time.Duration) bool {
	return s.Age(now) > maxAge
}
