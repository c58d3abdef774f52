package sqlite

import (
	"context"
	"fmt"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// threadRepository implements repository.ThreadRepository for SQLite.
type threadRepository struct {
	db *DB
}

// NewThreadRepository creates a new SQLite thread repository.
func NewThreadRepository(db *DB) repository.ThreadRepository {
	return &threadRepository{db: db}
}

// Create creates a new thread.
func (r *threadRepository) Create(ctx context.Context, thread *domain.Thread) error {
	query := `
		INSERT INTO threads (title, body, author_id, is_private, is_deleted, views, created_at)
		VALUES (?, ?, ?, ?, 0, 0, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		thread.Title,
		thread.Body,
		thread.AuthorID,
		boolToInt(thread.IsPrivate),
		timeToString(thread.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	thread.ID = id

	return nil
}

// GetByID retrieves a non-deleted thread with its author name.
func (r *threadRepository) GetByID(ctx context.Context, id int64) (*domain.Thread, error) {
	query := `
		SELECT t.id, t.title, t.body, t.author_id, u.username, t.is_private, t.views, t.created_at
		FROM threads t
		JOIN users u ON t.author_id = u.id
		WHERE t.id = ? AND t.is_deleted = 0
	`

	thread := &domain.Thread{}
	var isPrivate int
	var createdAt string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID,
		&thread.Title,
		&thread.Body,
		&thread.AuthorID,
		&thread.Author,
		&isPrivate,
		&thread.Views,
		&createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrThreadNotFound
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	thread.IsPrivate = isPrivate != 0
	thread.CreatedAt = parseTime(createdAt)

	return thread, nil
}

// List returns non-deleted threads of one visibility, newest first.
func (r *threadRepository) List(ctx context.Context, private bool) ([]*domain.Thread, error) {
	query := `
		SELECT t.id, t.title, t.body, t.author_id, u.username, t.is_private, t.views, t.created_at
		FROM threads t
		JOIN users u ON t.author_id = u.id
		WHERE t.is_private = ? AND t.is_deleted = 0
		ORDER BY t.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, boolToInt(private))
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []*domain.Thread
	for rows.Next() {
		thread := &domain.Thread{}
		var isPrivate int
		var createdAt string

		err := rows.Scan(
			&thread.ID,
			&thread.Title,
			&thread.Body,
			&thread.AuthorID,
			&thread.Author,
			&isPrivate,
			&thread.Views,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}

		thread.IsPrivate = isPrivate != 0
		thread.CreatedAt = parseTime(createdAt)
		threads = append(threads, thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}

// ListAll returns threads regardless of visibility or deletion, with reply
// counts, for the admin console.
func (r *threadRepository) ListAll(ctx context.Context, limit int) ([]*domain.Thread, error) {
	query := `
		SELECT t.id, t.title, t.body, t.author_id, u.username, t.is_private, t.is_deleted, t.views, t.created_at,
			(SELECT COUNT(*) FROM replies WHERE thread_id = t.id AND is_deleted = 0) AS reply_count
		FROM threads t
		JOIN users u ON t.author_id = u.id
		ORDER BY t.created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []*domain.Thread
	for rows.Next() {
		thread := &domain.Thread{}
		var isPrivate, isDeleted int
		var createdAt string

		err := rows.Scan(
			&thread.ID,
			&thread.Title,
			&thread.Body,
			&thread.AuthorID,
			&thread.Author,
			&isPrivate,
			&isDeleted,
			&thread.Views,
			&createdAt,
			&thread.ReplyCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}

		thread.IsPrivate = isPrivate != 0
		thread.IsDeleted = isDeleted != 0
		thread.CreatedAt = parseTime(createdAt)
		threads = append(threads, thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}

// IncrementViews adds one to the view counter.
func (r *threadRepository) IncrementViews(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE threads SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

// SoftDelete marks a thread deleted without removing the row.
func (r *threadRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE threads SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete thread: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrThreadNotFound
	}
	return nil
}

// Ensure threadRepository implements repository.ThreadRepository.
var _ repository.ThreadRepository = (*threadRepository)(nil)
