package service

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/metrics"
	"github.com/palisade-forum/palisade/internal/repository"
)

// IPBanService manages address-level bans checked before any other
// request processing.
type IPBanService struct {
	banRepo repository.IPBanRepository
	events  *EventService
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewIPBanService creates a new IPBanService. The metrics collector may be nil.
func NewIPBanService(
	banRepo repository.IPBanRepository,
	events *EventService,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *IPBanService {
	return &IPBanService{
		banRepo: banRepo,
		events:  events,
		metrics: m,
		now:     time.Now,
		logger:  logger.With().Str("service", "ipban").Logger(),
	}
}

// CheckBanned reports whether ip is currently banned. Matching requests
// are recorded as critical audit events by the caller's middleware via
// RecordBlocked.
func (s *IPBanService) CheckBanned(ctx context.Context, ip string) (bool, error) {
	_, err := s.banRepo.GetActiveByIP(ctx, ip, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrIPBanNotFound) {
			return false, nil
		}
		s.logger.Error().Err(err).Str("ip", ip).Msg("failed to check ip ban")
		return false, ErrInternalError
	}
	return true, nil
}

// RecordBlocked audits one rejected request from a banned address.
func (s *IPBanService) RecordBlocked(ctx context.Context, meta RequestMeta) {
	if s.metrics != nil {
		s.metrics.BlockedIPs.Inc()
	}
	s.events.Record(ctx, meta.Event(domain.EventBannedIPAttempt, domain.SeverityCritical))
}

// BanInput contains the data needed to ban an address.
type BanInput struct {
	IP       string
	Reason   string
	Duration time.Duration
	Actor    *domain.User
	Meta     RequestMeta
}

// Ban blocks an address. A zero duration makes the ban permanent.
func (s *IPBanService) Ban(ctx context.Context, input BanInput) (*domain.IPBan, error) {
	if net.ParseIP(input.IP) == nil {
		return nil, ErrInvalidIP
	}

	var actorID int64
	if input.Actor != nil {
		actorID = input.Actor.ID
	}

	ban := domain.NewIPBan(input.IP, input.Reason, actorID, input.Duration)
	if err := s.banRepo.Create(ctx, ban); err != nil {
		if errors.Is(err, domain.ErrIPAlreadyBanned) {
			return nil, domain.ErrIPAlreadyBanned
		}
		s.logger.Error().Err(err).Str("ip", input.IP).Msg("failed to create ip ban")
		return nil, ErrInternalError
	}

	event := input.Meta.Event(domain.EventIPBanned, domain.SeverityHigh)
	if input.Actor != nil {
		event.UserID = &input.Actor.ID
		event.Username = input.Actor.Username
	}
	event.Details = map[string]any{
		"banned_ip": input.IP,
		"reason":    input.Reason,
		"permanent": ban.ExpiresAt == nil,
	}
	s.events.Record(ctx, event)

	return ban, nil
}

// Unban lifts a ban by record ID.
func (s *IPBanService) Unban(ctx context.Context, id int64, actor *domain.User, meta RequestMeta) error {
	if err := s.banRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrIPBanNotFound) {
			return domain.ErrIPBanNotFound
		}
		s.logger.Error().Err(err).Int64("ban_id", id).Msg("failed to delete ip ban")
		return ErrInternalError
	}

	event := meta.Event(domain.EventIPUnbanned, domain.SeverityMedium)
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	event.Details = map[string]any{"ban_id": id}
	s.events.Record(ctx, event)

	return nil
}

// List returns all bans with issuer usernames, newest first.
func (s *IPBanService) List(ctx context.Context) ([]*domain.IPBan, error) {
	bans, err := s.banRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list ip bans")
		return nil, ErrInternalError
	}
	return bans, nil
}
