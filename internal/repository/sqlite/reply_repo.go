package sqlite

import (
	"context"
	"fmt"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// replyRepository implements repository.ReplyRepository for SQLite.
type replyRepository struct {
	db *DB
}

// NewReplyRepository creates a new SQLite reply repository.
func NewReplyRepository(db *DB) repository.ReplyRepository {
	return &replyRepository{db: db}
}

// Create creates a new reply.
func (r *replyRepository) Create(ctx context.Context, reply *domain.Reply) error {
	query := `
		INSERT INTO replies (thread_id, author_id, text, is_deleted, created_at)
		VALUES (?, ?, ?, 0, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		reply.ThreadID,
		reply.AuthorID,
		reply.Text,
		timeToString(reply.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create reply: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	reply.ID = id

	return nil
}

// ListByThread returns non-deleted replies oldest first.
func (r *replyRepository) ListByThread(ctx context.Context, threadID int64) ([]*domain.Reply, error) {
	query := `
		SELECT r.id, r.thread_id, r.author_id, u.username, r.text, r.created_at
		FROM replies r
		JOIN users u ON r.author_id = u.id
		WHERE r.thread_id = ? AND r.is_deleted = 0
		ORDER BY r.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	defer rows.Close()

	var replies []*domain.Reply
	for rows.Next() {
		reply := &domain.Reply{}
		var createdAt string

		err := rows.Scan(
			&reply.ID,
			&reply.ThreadID,
			&reply.AuthorID,
			&reply.Author,
			&reply.Text,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}

		reply.CreatedAt = parseTime(createdAt)
		replies = append(replies, reply)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating replies: %w", err)
	}

	return replies, nil
}

// SoftDelete marks a reply deleted without removing the row.
func (r *replyRepository) SoftDelete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE replies SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete reply: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrReplyNotFound
	}
	return nil
}

// Ensure replyRepository implements repository.ReplyRepository.
var _ repository.ReplyRepository = (*replyRepository)(nil)
