package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// ipBanRepository implements repository.IPBanRepository for SQLite.
type ipBanRepository struct {
	db *DB
}

// NewIPBanRepository creates a new SQLite IP ban repository.
func NewIPBanRepository(db *DB) repository.IPBanRepository {
	return &ipBanRepository{db: db}
}

// Create creates a new ban.
func (r *ipBanRepository) Create(ctx context.Context, ban *domain.IPBan) error {
	query := `
		INSERT INTO ip_bans (ip_address, reason, banned_by, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		ban.IPAddress,
		ban.Reason,
		int64PtrToNull(ban.BannedBy),
		timeToString(ban.CreatedAt),
		timePtrToNull(ban.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrIPAlreadyBanned, ban.IPAddress)
		}
		return fmt.Errorf("failed to create ip ban: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	ban.ID = id

	return nil
}

// GetActiveByIP retrieves a ban that applies at the given instant.
// Expired bans are left in place for the audit trail but no longer match.
func (r *ipBanRepository) GetActiveByIP(ctx context.Context, ip string, now time.Time) (*domain.IPBan, error) {
	query := `
		SELECT id, ip_address, reason, banned_by, created_at, expires_at
		FROM ip_bans
		WHERE ip_address = ? AND (expires_at IS NULL OR expires_at > ?)
	`

	ban := &domain.IPBan{}
	var bannedBy sql.NullInt64
	var createdAt string
	var expiresAt sql.NullString

	err := r.db.QueryRowContext(ctx, query, ip, timeToString(now)).Scan(
		&ban.ID,
		&ban.IPAddress,
		&ban.Reason,
		&bannedBy,
		&createdAt,
		&expiresAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrIPBanNotFound
		}
		return nil, fmt.Errorf("failed to get ip ban: %w", err)
	}

	ban.BannedBy = nullInt64Ptr(bannedBy)
	ban.CreatedAt = parseTime(createdAt)
	ban.ExpiresAt = parseNullTime(expiresAt)

	return ban, nil
}

// List returns all bans with issuer usernames, newest first.
func (r *ipBanRepository) List(ctx context.Context) ([]*domain.IPBan, error) {
	query := `
		SELECT ib.id, ib.ip_address, ib.reason, ib.banned_by, ib.created_at, ib.expires_at,
			u.username
		FROM ip_bans ib
		LEFT JOIN users u ON ib.banned_by = u.id
		ORDER BY ib.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ip bans: %w", err)
	}
	defer rows.Close()

	var bans []*domain.IPBan
	for rows.Next() {
		ban := &domain.IPBan{}
		var bannedBy sql.NullInt64
		var createdAt string
		var expiresAt, bannedByName sql.NullString

		err := rows.Scan(
			&ban.ID,
			&ban.IPAddress,
			&ban.Reason,
			&bannedBy,
			&createdAt,
			&expiresAt,
			&bannedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ip ban: %w", err)
		}

		ban.BannedBy = nullInt64Ptr(bannedBy)
		ban.CreatedAt = parseTime(createdAt)
		ban.ExpiresAt = parseNullTime(expiresAt)
		if bannedByName.Valid {
			ban.BannedByUsername = bannedByName.String
		}

		bans = append(bans, ban)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ip bans: %w", err)
	}

	return bans, nil
}

// Delete removes a ban record.
func (r *ipBanRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ip_bans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ip ban: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrIPBanNotFound
	}

	return nil
}

// Ensure ipBanRepository implements repository.IPBanRepository.
var _ repository.IPBanRepository = (*ipBanRepository)(nil)
