package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// StatsService aggregates counts for the admin dashboard.
type StatsService struct {
	statsRepo repository.StatsRepository
	events    *EventService
	sessions  *SessionService
	logger    zerolog.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(
	statsRepo repository.StatsRepository,
	events *EventService,
	sessions *SessionService,
	logger zerolog.Logger,
) *StatsService {
	return &StatsService{
		statsRepo: statsRepo,
		events:    events,
		sessions:  sessions,
		logger:    logger.With().Str("service", "stats").Logger(),
	}
}

// DashboardStats is the admin dashboard payload.
type DashboardStats struct {
	repository.ForumStats
	ActiveSessions   int                       `json:"active_sessions"`
	EventsBySeverity map[domain.Severity]int64 `json:"events_by_severity"`
}

// Dashboard gathers forum, session and audit counts.
func (s *StatsService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	forum, err := s.statsRepo.ForumStats(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to gather forum stats")
		return nil, ErrInternalError
	}

	severities, err := s.events.CountBySeverity(ctx)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		ForumStats:       *forum,
		ActiveSessions:   s.sessions.Count(),
		EventsBySeverity: severities,
	}, nil
}
