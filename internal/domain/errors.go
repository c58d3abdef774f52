// Package domain contains the core business entities for Palisade Forum.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserBanned indicates the account is banned.
	ErrUserBanned = errors.New("account banned")

	// ErrAccountLocked indicates too many consecutive failed logins.
	ErrAccountLocked = errors.New("account locked")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSelfTarget indicates an admin tried to ban or delete themselves.
	ErrSelfTarget = errors.New("cannot target own account")

	// ===========================================
	// Access Key Errors
	// ===========================================

	// ErrAccessKeyNotFound indicates the requested access key does not exist.
	ErrAccessKeyNotFound = errors.New("access key not found")

	// ErrAccessKeyInvalid indicates the code is unknown, inactive, or used.
	ErrAccessKeyInvalid = errors.New("invalid registration key")

	// ErrAccessKeyUsed indicates a concurrent redemption won the race.
	ErrAccessKeyUsed = errors.New("access key already used")

	// ===========================================
	// Session / Authorization Errors
	// ===========================================

	// ErrNotAuthenticated indicates no valid session accompanied the request.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAccessDenied indicates the caller lacks the required capability.
	ErrAccessDenied = errors.New("access denied")

	// ErrSessionNotFound indicates the session token is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ===========================================
	// Content Errors
	// ===========================================

	// ErrThreadNotFound indicates the thread is absent or soft-deleted.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrReplyNotFound indicates the reply is absent or soft-deleted.
	ErrReplyNotFound = errors.New("reply not found")

	// ===========================================
	// IP Ban Errors
	// ===========================================

	// ErrIPBanNotFound indicates no ban record exists for the address.
	ErrIPBanNotFound = errors.New("ip ban not found")

	// ErrIPAlreadyBanned indicates a ban already exists for the address.
	ErrIPAlreadyBanned = errors.New("ip already banned")

	// ===========================================
	// SIEM Errors
	// ===========================================

	// ErrEventNotFound indicates the requested event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidSeverity indicates an unknown severity level.
	ErrInvalidSeverity = errors.New("invalid severity")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., username, thread ID).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
