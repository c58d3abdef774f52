package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// eventRepository implements repository.EventRepository for PostgreSQL.
type eventRepository struct {
	db *DB
}

// NewEventRepository creates a new PostgreSQL SIEM event repository.
func NewEventRepository(db *DB) repository.EventRepository {
	return &eventRepository{db: db}
}

// Insert appends one event row.
func (r *eventRepository) Insert(ctx context.Context, event *domain.Event) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal event details: %w", err)
		}
	}

	query := `
		INSERT INTO siem_events (event_type, severity, user_id, username, ip_address, user_agent, endpoint, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		event.Type,
		string(event.Severity),
		event.UserID,
		event.Username,
		event.IPAddress,
		event.UserAgent,
		event.Endpoint,
		details,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// Query returns events most-recent-first plus the unfiltered total.
func (r *eventRepository) Query(ctx context.Context, filter repository.EventFilter) (*repository.ListResult[domain.Event], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM siem_events`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	query := `
		SELECT id, event_type, severity, user_id, username, ip_address, user_agent, endpoint, details, created_at
		FROM siem_events
		WHERE 1=1
	`
	args := []interface{}{}
	argN := 1

	if filter.Severity != "" {
		query += fmt.Sprintf(` AND severity = $%d`, argN)
		args = append(args, string(filter.Severity))
		argN++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(` AND event_type = $%d`, argN)
		args = append(args, filter.Type)
		argN++
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, argN, argN+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return &repository.ListResult[domain.Event]{
		Items:  events,
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, nil
}

// scanEvent scans one event from a rows cursor.
func scanEvent(rows pgx.Rows) (*domain.Event, error) {
	event := &domain.Event{}
	var severity string
	var details []byte

	err := rows.Scan(
		&event.ID,
		&event.Type,
		&severity,
		&event.UserID,
		&event.Username,
		&event.IPAddress,
		&event.UserAgent,
		&event.Endpoint,
		&details,
		&event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Severity = domain.Severity(severity)
	if len(details) > 0 {
		_ = json.Unmarshal(details, &event.Details)
	}

	return event, nil
}

// PurgeBefore deletes events created before cutoff.
func (r *eventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM siem_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountBySeverity returns event counts keyed by severity.
func (r *eventRepository) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT severity, COUNT(*) FROM siem_events GROUP BY severity`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Severity]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[domain.Severity(severity)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating severity counts: %w", err)
	}

	return counts, nil
}

// Ensure eventRepository implements repository.EventRepository.
var _ repository.EventRepository = (*eventRepository)(nil)
