package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/lock"
	"github.com/palisade-forum/palisade/internal/metrics"
	"github.com/palisade-forum/palisade/internal/repository"
)

// EventService records and queries security audit events.
type EventService struct {
	eventRepo repository.EventRepository
	locker    lock.Locker
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	retention     time.Duration
	queryMaxLimit int
	now           func() time.Time
	done          chan struct{}
}

// NewEventService creates a new EventService. The metrics collector may be nil.
func NewEventService(
	eventRepo repository.EventRepository,
	locker lock.Locker,
	m *metrics.Metrics,
	retention time.Duration,
	queryMaxLimit int,
	logger zerolog.Logger,
) *EventService {
	return &EventService{
		eventRepo:     eventRepo,
		locker:        locker,
		metrics:       m,
		retention:     retention,
		queryMaxLimit: queryMaxLimit,
		now:           time.Now,
		done:          make(chan struct{}),
		logger:        logger.With().Str("service", "event").Logger(),
	}
}

// Record persists one audit event. Recording never fails the caller's
// request: storage errors are logged and swallowed so that audit plumbing
// cannot take down the operation being audited.
func (s *EventService) Record(ctx context.Context, event *domain.Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now().UTC()
	}
	if !event.Severity.Valid() {
		event.Severity = domain.SeverityLow
	}

	if err := s.eventRepo.Insert(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", event.Type).
			Str("severity", string(event.Severity)).
			Msg("failed to record audit event")
		return
	}

	if s.metrics != nil {
		s.metrics.SecurityEvents.WithLabelValues(event.Type, string(event.Severity)).Inc()
	}

	logEvent := s.logger.Info()
	if event.Severity == domain.SeverityHigh || event.Severity == domain.SeverityCritical {
		logEvent = s.logger.Warn()
	}
	logEvent.
		Str("event_type", event.Type).
		Str("severity", string(event.Severity)).
		Str("ip", event.IPAddress).
		Msg("audit event")
}

// QueryEventsInput contains filter parameters for the audit log.
type QueryEventsInput struct {
	Severity string
	Type     string
	Limit    int
	Offset   int
}

// QueryEventsOutput contains a page of audit events.
type QueryEventsOutput struct {
	Events []*domain.Event `json:"events"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// Query returns audit events most-recent-first. Severity filters must name
// a known level; limits are clamped to the configured maximum.
func (s *EventService) Query(ctx context.Context, input QueryEventsInput) (*QueryEventsOutput, error) {
	var severity domain.Severity
	if input.Severity != "" {
		severity = domain.Severity(input.Severity)
		if !severity.Valid() {
			return nil, domain.ErrInvalidSeverity
		}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > s.queryMaxLimit {
		limit = s.queryMaxLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	result, err := s.eventRepo.Query(ctx, repository.EventFilter{
		Severity: severity,
		Type:     input.Type,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query audit events")
		return nil, ErrInternalError
	}

	return &QueryEventsOutput{
		Events: result.Items,
		Total:  result.Total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// CountBySeverity returns event counts keyed by severity level.
func (s *EventService) CountBySeverity(ctx context.Context) (map[domain.Severity]int64, error) {
	counts, err := s.eventRepo.CountBySeverity(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count audit events")
		return nil, ErrInternalError
	}
	return counts, nil
}

// Purge removes events older than the retention window and records the
// purge itself as an audit event. Returns the number of events removed.
func (s *EventService) Purge(ctx context.Context, actor *domain.User, ip string) (int64, error) {
	acquired, err := s.locker.Acquire(ctx, lock.Keys.EventPurge(), time.Minute)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire purge lock")
		return 0, ErrInternalError
	}
	if !acquired {
		// Another instance is already sweeping.
		return 0, nil
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lock.Keys.EventPurge()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release purge lock")
		}
	}()

	cutoff := s.now().UTC().Add(-s.retention)
	removed, err := s.eventRepo.PurgeBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to purge audit events")
		return 0, ErrInternalError
	}

	if s.metrics != nil {
		s.metrics.EventsPurged.Add(float64(removed))
	}

	purgeEvent := &domain.Event{
		Type:      domain.EventSIEMPurged,
		Severity:  domain.SeverityLow,
		IPAddress: ip,
		Details: map[string]any{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		},
	}
	if actor != nil {
		purgeEvent.UserID = &actor.ID
		purgeEvent.Username = actor.Username
	}
	s.Record(ctx, purgeEvent)

	s.logger.Info().
		Int64("removed", removed).
		Time("cutoff", cutoff).
		Msg("audit events purged")

	return removed, nil
}

// StartRetentionLoop runs automatic purges until Stop is called.
func (s *EventService) StartRetentionLoop(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := s.Purge(ctx, nil, ""); err != nil {
					s.logger.Error().Err(err).Msg("retention sweep failed")
				}
				cancel()
			}
		}
	}()
}

// Stop terminates the retention loop.
func (s *EventService) Stop() {
	close(s.done)
}
