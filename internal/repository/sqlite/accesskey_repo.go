package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// accessKeyRepository implements repository.AccessKeyRepository for SQLite.
type accessKeyRepository struct {
	db *DB
}

// NewAccessKeyRepository creates a new SQLite access key repository.
func NewAccessKeyRepository(db *DB) repository.AccessKeyRepository {
	return &accessKeyRepository{db: db}
}

// Create creates a new active key.
func (r *accessKeyRepository) Create(ctx context.Context, key *domain.AccessKey) error {
	query := `
		INSERT INTO access_keys (key_code, is_active, created_by, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		key.Code,
		boolToInt(key.IsActive),
		key.CreatedBy,
		timeToString(key.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: key code collision", domain.ErrAccessKeyUsed)
		}
		return fmt.Errorf("failed to create access key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	key.ID = id

	return nil
}

// GetActiveByCode retrieves an active, unused key by exact code.
func (r *accessKeyRepository) GetActiveByCode(ctx context.Context, code string) (*domain.AccessKey, error) {
	query := `
		SELECT id, key_code, is_active, created_by, used_by, created_at, used_at
		FROM access_keys
		WHERE key_code = ? AND is_active = 1 AND used_by IS NULL
	`

	key := &domain.AccessKey{}
	var isActive int
	var usedBy sql.NullInt64
	var createdAt string
	var usedAt sql.NullString

	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&key.ID,
		&key.Code,
		&isActive,
		&key.CreatedBy,
		&usedBy,
		&createdAt,
		&usedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrAccessKeyInvalid
		}
		return nil, fmt.Errorf("failed to get access key: %w", err)
	}

	key.IsActive = isActive != 0
	key.UsedBy = nullInt64Ptr(usedBy)
	key.CreatedAt = parseTime(createdAt)
	key.UsedAt = parseNullTime(usedAt)

	return key, nil
}

// Redeem atomically consumes an active, unused key for userID.
// The WHERE clause re-checks the active/unused state inside the same
// statement, so two concurrent redemptions of one code cannot both succeed:
// the loser matches zero rows and gets domain.ErrAccessKeyUsed.
func (r *accessKeyRepository) Redeem(ctx context.Context, code string, userID int64, at time.Time) error {
	query := `
		UPDATE access_keys
		SET is_active = 0, used_by = ?, used_at = ?
		WHERE key_code = ? AND is_active = 1 AND used_by IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, userID, timeToString(at), code)
	if err != nil {
		return fmt.Errorf("failed to redeem access key: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrAccessKeyUsed
	}

	return nil
}

// List returns all keys with creator/consumer usernames, newest first.
func (r *accessKeyRepository) List(ctx context.Context) ([]*domain.AccessKey, error) {
	query := `
		SELECT ak.id, ak.key_code, ak.is_active, ak.created_by, ak.used_by,
			ak.created_at, ak.used_at,
			u1.username, u2.username
		FROM access_keys ak
		LEFT JOIN users u1 ON ak.created_by = u1.id
		LEFT JOIN users u2 ON ak.used_by = u2.id
		ORDER BY ak.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list access keys: %w", err)
	}
	defer rows.Close()

	var keys []*domain.AccessKey
	for rows.Next() {
		key := &domain.AccessKey{}
		var isActive int
		var usedBy sql.NullInt64
		var createdAt string
		var usedAt, createdByName, usedByName sql.NullString

		err := rows.Scan(
			&key.ID,
			&key.Code,
			&isActive,
			&key.CreatedBy,
			&usedBy,
			&createdAt,
			&usedAt,
			&createdByName,
			&usedByName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access key: %w", err)
		}

		key.IsActive = isActive != 0
		key.UsedBy = nullInt64Ptr(usedBy)
		key.CreatedAt = parseTime(createdAt)
		key.UsedAt = parseNullTime(usedAt)
		if createdByName.Valid {
			key.CreatedByUsername = createdByName.String
		}
		if usedByName.Valid {
			key.UsedByUsername = usedByName.String
		}

		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access keys: %w", err)
	}

	return keys, nil
}

// Delete removes a key record outright.
func (r *accessKeyRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM access_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete access key: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrAccessKeyNotFound
	}

	return nil
}

// Ensure accessKeyRepository implements repository.AccessKeyRepository.
var _ repository.AccessKeyRepository = (*accessKeyRepository)(nil)
