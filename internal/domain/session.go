package domain

import "time"

// Session represents an authenticated browser session. Sessions live in
// process memory and expire after a sliding TTL of inactivity.
type Session struct {
	Token     string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its deadline at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
