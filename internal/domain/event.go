package domain

import "time"

// Severity classifies a security event for triage.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Event is one append-only SIEM audit record. Events are never updated;
// the only removal path is an admin retention purge.
type Event struct {
	// ID is the unique identifier for the event (auto-generated).
	ID int64 `json:"id"`

	// Type names the security decision, e.g. "login_failed",
	// "banned_ip_attempt", "siem_purged".
	Type string `json:"event_type"`

	// Severity is the triage level.
	Severity Severity `json:"severity"`

	// UserID and Username identify the acting user when a session or
	// login attempt is involved.
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// IPAddress, UserAgent and Endpoint capture the request context.
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Endpoint  string `json:"endpoint"`

	// Details holds structured, event-specific context. Stored as JSON.
	Details map[string]any `json:"details,omitempty"`

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Well-known event types emitted by the security subsystem.
const (
	EventAdminCreated        = "admin_created"
	EventUserRegistered      = "user_registered"
	EventRegistrationFailed  = "registration_failed"
	EventEmailVerified       = "email_verified"
	EventEmailVerifyFailed   = "email_verification_failed"
	EventLoginSuccess        = "login_success"
	EventLoginFailed         = "login_failed"
	EventBannedLoginAttempt  = "banned_login_attempt"
	EventAccountLocked       = "account_locked"
	EventLogout              = "logout"
	EventUnauthorizedAccess  = "unauthorized_access"
	EventBannedUserAttempt   = "banned_user_attempt"
	EventAdminAccessDenied   = "admin_access_denied"
	EventBannedIPAttempt     = "banned_ip_attempt"
	EventRateLimitExceeded   = "rate_limit_exceeded"
	EventAuthRateLimit       = "auth_rate_limit"
	EventThreadCreated       = "thread_created"
	EventReplyCreated        = "reply_created"
	EventThreadDeleted       = "thread_deleted"
	EventReplyDeleted        = "reply_deleted"
	EventUserCreatedByAdmin  = "user_created_by_admin"
	EventUserBanChanged      = "user_ban_changed"
	EventUserRoleChanged     = "user_role_changed"
	EventUserDeleted         = "user_deleted"
	EventKeysGenerated       = "keys_generated"
	EventKeyDeleted          = "key_deleted"
	EventIPBanned            = "ip_banned"
	EventIPUnbanned          = "ip_unbanned"
	EventSIEMPurged          = "siem_purged"
	EventPasswordChanged     = "password_changed"
	EventPasswordChangeFail  = "password_change_failed"
	EventServerError         = "server_error"
)

// DefaultEventRetention is the purge cutoff used when the operator does
// not supply one.
const DefaultEventRetention = 30 * 24 * time.Hour
