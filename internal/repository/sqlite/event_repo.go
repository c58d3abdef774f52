package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// eventRepository implements repository.EventRepository for SQLite.
type eventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite SIEM event repository.
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.Type,
		string(event.Severity),
		int64PtrToNull(event.UserID),
		event.Username,
		event.IPAddress,
		event.UserAgent,
		event.Endpoint,
		string(details),
		timeToString(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	event.ID = id

	return nil
}

// Query returns events most-recent-first plus the unfiltered total.
func (r *eventRepository) Query(ctx context.Context, filter repository.EventFilter) (*repository.ListResult[domain.Event], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM siem_events`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	query := `
		SELECT id, event_type, severity, user_id, username, ip_address, user_agent, endpoint, details, created_at
		FROM siem_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.Type != "" {
		query += ` AND event_type = ?`
		args = append(args, filter.Type)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		event, err := scanEventRow(rows)
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

// scanEventRow scans one event from a rows cursor.
func scanEventRow(rows *sql.Rows) (*domain.Event, error) {
	event := &domain.Event{}
	var severity string
	var userID sql.NullInt64
	var username, ipAddress, userAgent, endpoint, details sql.NullString
	var createdAt string

	err := rows.Scan(
		&event.ID,
		&event.Type,
		&severity,
		&userID,
		&username,
		&ipAddress,
		&userAgent,
		&endpoint,
		&details,
		&createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	event.Severity = domain.Severity(severity)
	event.UserID = nullInt64Ptr(userID)
	event.Username = username.String
	event.IPAddress = ipAddress.String
	event.UserAgent = userAgent.String
	event.Endpoint = endpoint.String
	event.CreatedAt = parseTime(createdAt)

	if details.Valid && details.String != "" {
		// Details that fail to decode are left nil rather than failing
		// the query; the raw row stays intact in the table.
		_ = json.Unmarshal([]byte(details.String), &event.Details)
	}

	return event, nil
}

// PurgeBefore deletes events created before cutoff.
func (r *eventRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM siem_events WHERE created_at < ?`,
		timeToString(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	return result.RowsAffected()
}

// CountBySeverity returns event counts keyed by severity.
func (r *eventRepository) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM siem_events GROUP BY severity`,
	)
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
