package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/metrics"
)

// SessionService manages in-memory login sessions keyed by opaque tokens.
// Sessions use a sliding expiration: each authenticated request pushes the
// deadline out by the full TTL.
type SessionService struct {
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*domain.Session
	done     chan struct{}
}

// NewSessionService creates a new SessionService. The metrics collector may be nil.
func NewSessionService(ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *SessionService {
	return &SessionService{
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*domain.Session),
		done:     make(chan struct{}),
		logger:   logger.With().Str("service", "session").Logger(),
	}
}

// Create issues a fresh session for the user.
func (s *SessionService) Create(userID int64) *domain.Session {
	now := s.now()
	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	s.updateGauge()
	return session
}

// Get resolves a token to its session, refreshing the sliding deadline.
// Expired sessions are removed and reported as not found.
func (s *SessionService) Get(token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	now := s.now()
	if session.Expired(now) {
		delete(s.sessions, token)
		return nil, domain.ErrSessionNotFound
	}

	session.ExpiresAt = now.Add(s.ttl)
	return session, nil
}

// Destroy removes a session. Unknown tokens are a no-op.
func (s *SessionService) Destroy(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()

	s.updateGauge()
}

// DestroyAllForUser removes every session belonging to the user. Called
// when an account is banned or deleted so access ends immediately.
func (s *SessionService) DestroyAllForUser(userID int64) int {
	s.mu.Lock()
	removed := 0
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info().Int64("user_id", userID).Int("sessions", removed).Msg("sessions revoked")
		s.updateGauge()
	}
	return removed
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor launches a background sweep removing expired sessions.
func (s *SessionService) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep drops sessions past their deadline.
func (s *SessionService) sweep() {
	s.mu.Lock()
	now := s.now()
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()

	s.updateGauge()
}

// Stop terminates the janitor goroutine.
func (s *SessionService) Stop() {
	close(s.done)
}

func (s *SessionService) updateGauge() {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.Count()))
}
