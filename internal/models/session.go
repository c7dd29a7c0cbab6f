package models

import "time"

// Session is a server-side login. Token is the credential carried by the
// session cookie.
type Session struct {
	ID        int
	UserID    int
	Token     string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	IsActive  bool
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
