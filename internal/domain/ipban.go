package domain

import "time"

// IPBan blocks a client address before any other request processing.
// A nil ExpiresAt means the ban is permanent.
type IPBan struct {
	ID        int64      `json:"id"`
	IPAddress string     `json:"ip_address"`
	Reason    string     `json:"reason"`
	BannedBy  *int64     `json:"banned_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// BannedByUsername is populated on admin listings only.
	BannedByUsername string `json:"banned_by_username,omitempty"`
}

// NewIPBan creates a ban on ip issued by bannedBy. A zero duration
// produces a permanent ban.
func NewIPBan(ip, reason string, bannedBy int64, duration time.Duration) *IPBan {
	ban := &IPBan{
		IPAddress: ip,
		Reason:    reason,
		BannedBy:  &bannedBy,
		CreatedAt: time.Now().UTC(),
	}
	if duration > 0 {
		t := ban.CreatedAt.Add(duration)
		ban.ExpiresAt = &t
	}
	return ban
}

// Active reports whether the ban applies at the given instant.
func (b *IPBan) Active(now time.Time) bool {
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}
