package domain

import "time"

// SessionRetention is the default time a session record is kept after
// creation, independent of the token expiry.
const SessionRetention = 24 * time.Hour

// Session is the persisted record of a token issued at login.
type Session struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LiveUntil is the earlier of the token expiry and the end of the
// retention window.
func (s *Session) LiveUntil(retention time.Duration) time.Time {
	end := s.CreatedAt.Add(retention)
	if s.ExpiresAt.Before(end) {
		return s.ExpiresAt
	}
	return end
}

// Active reports whether the session is usable at now.
func (s *Session) Active(now time.Time, retention time.Duration) bool {
	return now.Before(s.LiveUntil(retention))
}

// Identity is what the access guard resolves from a verified token.
type Identity struct {
	Username  string
	Role      string
	SessionID string
}
