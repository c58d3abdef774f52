// Package repository defines data access interfaces for Palisade Forum.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/palisade-forum/palisade/internal/domain"
)

// ListOptions contains pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// ListResult contains a page of items plus the unpaginated total.
type ListResult[T any] struct {
	Items  []*T
	Total  int64
	Offset int
	Limit  int
}

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByVerificationToken retrieves a user by pending email token.
	GetByVerificationToken(ctx context.Context, token string) (*domain.User, error)

	// ExistsByUsernameOrEmail checks for a duplicate username or email.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// RecordLoginFailure atomically increments the failure counter and
	// stamps the failure time. Safe under concurrent login attempts.
	RecordLoginFailure(ctx context.Context, id int64, at time.Time) error

	// RecordLoginSuccess atomically resets the failure counter and
	// stamps the last login time.
	RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error

	// MarkEmailVerified sets the verified flag and clears the token.
	MarkEmailVerified(ctx context.Context, id int64) error

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	// SetBanned updates the ban flag.
	SetBanned(ctx context.Context, id int64, banned bool) error

	// SetRoles updates the admin and private-access flags.
	SetRoles(ctx context.Context, id int64, isAdmin, hasPrivateAccess bool) error

	// Delete removes a user. Owned content cascades at the schema level.
	Delete(ctx context.Context, id int64) error

	// List returns users with content counts, newest first.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.UserStats], error)
}

// =============================================================================
// Thread / Reply Repositories
// =============================================================================

// ThreadRepository defines the interface for thread data access.
type ThreadRepository interface {
	// Create creates a new thread.
	Create(ctx context.Context, thread *domain.Thread) error

	// GetByID retrieves a non-deleted thread with its author name.
	GetByID(ctx context.Context, id int64) (*domain.Thread, error)

	// List returns non-deleted threads of one visibility, newest first.
	List(ctx context.Context, private bool) ([]*domain.Thread, error)

	// ListAll returns threads regardless of visibility or deletion,
	// with reply counts, for the admin console.
	ListAll(ctx context.Context, limit int) ([]*domain.Thread, error)

	// IncrementViews adds one to the view counter.
	IncrementViews(ctx context.Context, id int64) error

	// SoftDelete marks a thread deleted without removing the row.
	SoftDelete(ctx context.Context, id int64) error
}

// ReplyRepository defines the interface for reply data access.
type ReplyRepository interface {
	// Create creates a new reply.
	Create(ctx context.Context, reply *domain.Reply) error

	// ListByThread returns non-deleted replies oldest first.
	ListByThread(ctx context.Context, threadID int64) ([]*domain.Reply, error)

	// SoftDelete marks a reply deleted without removing the row.
	SoftDelete(ctx context.Context, id int64) error
}

// =============================================================================
// Access Key Repository
// =============================================================================

// AccessKeyRepository defines the interface for invite key data access.
type AccessKeyRepository interface {
	// Create creates a new active key.
	Create(ctx context.Context, key *domain.AccessKey) error

	// GetActiveByCode retrieves an active, unused key by exact code.
	GetActiveByCode(ctx context.Context, code string) (*domain.AccessKey, error)

	// Redeem atomically consumes an active, unused key for userID.
	// A conditional single-statement update guarantees first-use-wins:
	// if the key was already consumed, domain.ErrAccessKeyUsed is
	// returned and no state changes.
	Redeem(ctx context.Context, code string, userID int64, at time.Time) error

	// List returns all keys with creator/consumer usernames, newest first.
	List(ctx context.Context) ([]*domain.AccessKey, error)

	// Delete removes a key record outright. Admin only.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// IP Ban Repository
// =============================================================================

// IPBanRepository defines the interface for IP ban data access.
type IPBanRepository interface {
	// Create creates a new ban.
	Create(ctx context.Context, ban *domain.IPBan) error

	// GetActiveByIP retrieves a ban that applies at the given instant.
	GetActiveByIP(ctx context.Context, ip string, now time.Time) (*domain.IPBan, error)

	// List returns all bans with issuer usernames, newest first.
	List(ctx context.Context) ([]*domain.IPBan, error)

	// Delete removes a ban record.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// SIEM Event Repository
// =============================================================================

// EventFilter narrows SIEM queries.
type EventFilter struct {
	// Severity filters by exact severity when non-empty.
	Severity domain.Severity

	// Type filters by exact event type when non-empty.
	Type string

	Limit  int
	Offset int
}

// EventRepository defines the interface for the append-only audit log.
type EventRepository interface {
	// Insert appends one event row.
	Insert(ctx context.Context, event *domain.Event) error

	// Query returns events most-recent-first plus the unfiltered total.
	Query(ctx context.Context, filter EventFilter) (*ListResult[domain.Event], error)

	// PurgeBefore deletes events created before cutoff and returns the
	// number of rows removed.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CountBySeverity returns event counts keyed by severity.
	CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error)
}

// =============================================================================
// Stats Repository
// =============================================================================

// ForumStats aggregates counts for the admin dashboard.
type ForumStats struct {
	UsersTotal             int64 `json:"users_total"`
	UsersAdmins            int64 `json:"users_admins"`
	UsersBanned            int64 `json:"users_banned"`
	UsersWithPrivateAccess int64 `json:"users_with_private_access"`
	ThreadsTotal           int64 `json:"threads_total"`
	ThreadsPublic          int64 `json:"threads_public"`
	ThreadsPrivate         int64 `json:"threads_private"`
	RepliesTotal           int64 `json:"replies_total"`
	KeysTotal              int64 `json:"keys_total"`
	KeysActive             int64 `json:"keys_active"`
	KeysUsed               int64 `json:"keys_used"`
}

// StatsRepository aggregates content and account counts.
type StatsRepository interface {
	// ForumStats returns aggregate counts over users, content, and keys.
	ForumStats(ctx context.Context) (*ForumStats, error)
}
