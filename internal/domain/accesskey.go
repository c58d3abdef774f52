package domain

import "time"

// AccessKey is a single-use invite code. Redeeming a key during
// registration grants the new account private-area access and marks the
// key used. The Active -> Used transition happens exactly once; a key is
// never reactivated or reassigned.
type AccessKey struct {
	// ID is the unique identifier for the key (auto-generated).
	ID int64 `json:"id"`

	// Code is the human-typeable invite code, e.g. "3F1A-09BC-77DE-4E21".
	Code string `json:"key_code"`

	// IsActive is true until the key is consumed.
	IsActive bool `json:"is_active"`

	// CreatedBy is the admin who generated the key.
	CreatedBy int64 `json:"created_by"`

	// UsedBy is the user who consumed the key, once redeemed.
	UsedBy *int64 `json:"used_by,omitempty"`

	// CreatedAt is when the key was generated.
	CreatedAt time.Time `json:"created_at"`

	// UsedAt is when the key was consumed.
	UsedAt *time.Time `json:"used_at,omitempty"`

	// CreatedByUsername and UsedByUsername are populated on admin
	// listings only.
	CreatedByUsername string `json:"created_by_username,omitempty"`
	UsedByUsername    string `json:"used_by_username,omitempty"`
}

// NewAccessKey creates an active key owned by creatorID.
func NewAccessKey(code string, creatorID int64) *AccessKey {
	return &AccessKey{
		Code:      code,
		IsActive:  true,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC(),
	}
}

// Batch generation bounds for admin key generation.
const (
	MinKeyBatch = 1
	MaxKeyBatch = 50
)
