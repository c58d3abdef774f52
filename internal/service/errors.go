// Package service provides business logic services for the Palisade forum.
package service

import "errors"

// Common service errors.
var (
	// Validation errors
	ErrInvalidUsername = errors.New("invalid username: must be 3-50 characters (letters, digits, underscore, hyphen)")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")
	ErrInvalidTitle    = errors.New("invalid title: must be 5-200 characters")
	ErrInvalidBody     = errors.New("invalid body: must be 10-50000 characters")
	ErrInvalidReply    = errors.New("invalid reply: must be 1-10000 characters")
	ErrInvalidIP       = errors.New("invalid IP address")
	ErrInvalidKeyCount = errors.New("invalid key count: must be between 1 and 50")

	// General errors
	ErrRegistrationKeyRequired = errors.New("registration key required")
	ErrKeyRedemptionBusy       = errors.New("registration key is being redeemed by another request")
	ErrInternalError           = errors.New("internal server error")
)
