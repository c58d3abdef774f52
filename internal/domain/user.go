// Package domain contains the core business entities for Palisade Forum.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the forum and its security subsystem.
package domain

import (
	"time"
)

// User represents a registered identity in the forum.
// Users own threads and replies and may carry elevated capabilities
// (admin, private-area access) granted at registration or by an admin.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	// Constraints: 3-50 characters, alphanumeric plus '_' and '-'.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsAdmin indicates whether the user has administrative privileges.
	IsAdmin bool `json:"is_admin"`

	// IsBanned indicates whether the account is banned. Banned users
	// cannot authenticate, and any live session is destroyed on their
	// next authenticated request.
	IsBanned bool `json:"is_banned"`

	// HasPrivateAccess indicates whether the user may read and write
	// private threads. Granted by redeeming an access key at
	// registration or by an admin.
	HasPrivateAccess bool `json:"has_private_access"`

	// EmailVerified indicates whether the verification link was followed.
	EmailVerified bool `json:"email_verified"`

	// VerificationToken is the pending email verification token, if any.
	// Cleared once the email is verified.
	VerificationToken string `json:"-"`

	// FailedLoginAttempts counts consecutive failed logins. Reset to
	// zero on any successful login.
	FailedLoginAttempts int `json:"failed_login_attempts"`

	// LastFailedLogin is the time of the most recent failed login.
	LastFailedLogin *time.Time `json:"last_failed_login,omitempty"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// LastLogin is the time of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty"`

	// CreatedBy is the admin who created this account, if it was not
	// self-registered.
	CreatedBy *int64 `json:"created_by,omitempty"`
}

// NewUser creates a new User with default values.
func NewUser(username, email, passwordHash string) *User {
	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// CanSeePrivate reports whether the user may view private content.
func (u *User) CanSeePrivate() bool {
	return u.IsAdmin || u.HasPrivateAccess
}

// IsLockedOut reports whether the account is temporarily locked due to
// consecutive failed logins. The lock holds for lockFor from the last
// failure once threshold failures have accumulated.
func (u *User) IsLockedOut(now time.Time, threshold int, lockFor time.Duration) bool {
	if u.FailedLoginAttempts < threshold || u.LastFailedLogin == nil {
		return false
	}
	return now.Sub(*u.LastFailedLogin) < lockFor
}

// UserStats carries per-user content counts for the admin console.
type UserStats struct {
	User
	ThreadCount int64 `json:"thread_count"`
	ReplyCount  int64 `json:"reply_count"`
}
