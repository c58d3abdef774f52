// Package crypto provides random token generation for Palisade Forum.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// accessKeySegments and accessKeySegmentBytes shape invite codes:
	// 4 groups of 4 uppercase hex characters, e.g. "3F1A-09BC-77DE-4E21".
	accessKeySegments     = 4
	accessKeySegmentBytes = 2

	// verificationTokenBytes sizes email verification tokens (hex-encoded).
	verificationTokenBytes = 32

	// randomPasswordBytes sizes generated bootstrap passwords.
	randomPasswordBytes = 16
)

// GenerateAccessKeyCode generates a human-typeable single-use invite code.
func GenerateAccessKeyCode() (string, error) {
	segments := make([]string, 0, accessKeySegments)
	for i := 0; i < accessKeySegments; i++ {
		buf := make([]byte, accessKeySegmentBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate access key segment: %w", err)
		}
		segments = append(segments, strings.ToUpper(hex.EncodeToString(buf)))
	}
	return strings.Join(segments, "-"), nil
}

// GenerateVerificationToken generates an email verification token.
func GenerateVerificationToken() (string, error) {
	buf := make([]byte, verificationTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateRandomPassword generates a password for bootstrap admin accounts.
// The result is printed to the operator once and never stored in plaintext.
func GenerateRandomPassword() (string, error) {
	buf := make([]byte, randomPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}
