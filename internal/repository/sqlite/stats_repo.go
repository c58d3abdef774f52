package sqlite

import (
	"context"
	"fmt"

	"github.com/palisade-forum/palisade/internal/repository"
)

// statsRepository implements repository.StatsRepository for SQLite.
type statsRepository struct {
	db *DB
}

// NewStatsRepository creates a new SQLite stats repository.
func NewStatsRepository(db *DB) repository.StatsRepository {
	return &statsRepository{db: db}
}

// ForumStats returns aggregate counts over users, content, and keys.
func (r *statsRepository) ForumStats(ctx context.Context) (*repository.ForumStats, error) {
	stats := &repository.ForumStats{}

	queries := []struct {
		dest  *int64
		query string
	}{
		{&stats.UsersTotal, `SELECT COUNT(*) FROM users`},
		{&stats.UsersAdmins, `SELECT COUNT(*) FROM users WHERE is_admin = 1`},
		{&stats.UsersBanned, `SELECT COUNT(*) FROM users WHERE is_banned = 1`},
		{&stats.UsersWithPrivateAccess, `SELECT COUNT(*) FROM users WHERE has_private_access = 1`},
		{&stats.ThreadsTotal, `SELECT COUNT(*) FROM threads WHERE is_deleted = 0`},
		{&stats.ThreadsPublic, `SELECT COUNT(*) FROM threads WHERE is_private = 0 AND is_deleted = 0`},
		{&stats.ThreadsPrivate, `SELECT COUNT(*) FROM threads WHERE is_private = 1 AND is_deleted = 0`},
		{&stats.RepliesTotal, `SELECT COUNT(*) FROM replies WHERE is_deleted = 0`},
		{&stats.KeysTotal, `SELECT COUNT(*) FROM access_keys`},
		{&stats.KeysActive, `SELECT COUNT(*) FROM access_keys WHERE is_active = 1`},
		{&stats.KeysUsed, `SELECT COUNT(*) FROM access_keys WHERE used_by IS NOT NULL`},
	}

	for _, q := range queries {
		if err := r.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to gather forum stats: %w", err)
		}
	}

	return stats, nil
}

// Ensure statsRepository implements repository.StatsRepository.
var _ repository.StatsRepository = (*statsRepository)(nil)
