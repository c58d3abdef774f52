package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/lock"
)

func TestEventService_Record(t *testing.T) {
	repo := NewMockEventRepository()
	svc := newTestEventService(repo)

	svc.Record(context.Background(), &domain.Event{
		Type:      domain.EventLoginFailed,
		Severity:  domain.SeverityMedium,
		IPAddress: "10.0.0.1",
	})

	event := repo.lastEvent()
	require.NotNil(t, event)
	require.Equal(t, domain.EventLoginFailed, event.Type)
	require.False(t, event.CreatedAt.IsZero())
}

func TestEventService_RecordDefaultsSeverity(t *testing.T) {
	repo := NewMockEventRepository()
	svc := newTestEventService(repo)

	svc.Record(context.Background(), &domain.Event{Type: "custom_event", Severity: "bogus"})

	require.Equal(t, domain.SeverityLow, repo.lastEvent().Severity)
}

func TestEventService_RecordSwallowsStorageErrors(t *testing.T) {
	repo := NewMockEventRepository()
	repo.insertErr = errors.New("disk full")
	svc := newTestEventService(repo)

	// Must not panic or propagate.
	svc.Record(context.Background(), &domain.Event{Type: domain.EventLoginFailed})
	require.Nil(t, repo.lastEvent())
}

func TestEventService_Query(t *testing.T) {
	repo := NewMockEventRepository()
	svc := newTestEventService(repo)

	for i := 0; i < 3; i++ {
		svc.Record(context.Background(), &domain.Event{Type: domain.EventLoginFailed, Severity: domain.SeverityMedium})
	}
	svc.Record(context.Background(), &domain.Event{Type: domain.EventBannedIPAttempt, Severity: domain.SeverityCritical})

	output, err := svc.Query(context.Background(), QueryEventsInput{Severity: "critical"})
	require.NoError(t, err)
	require.Len(t, output.Events, 1)
	require.Equal(t, int64(4), output.Total)
}

func TestEventService_QueryInvalidSeverity(t *testing.T) {
	svc := newTestEventService(NewMockEventRepository())

	_, err := svc.Query(context.Background(), QueryEventsInput{Severity: "apocalyptic"})
	require.ErrorIs(t, err, domain.ErrInvalidSeverity)
}

func TestEventService_QueryClampsLimit(t *testing.T) {
	repo := NewMockEventRepository()
	svc := NewEventService(repo, lock.NewNoOpLocker(), nil, domain.DefaultEventRetention, 10, zerolog.Nop())

	output, err := svc.Query(context.Background(), QueryEventsInput{Limit: 5000})
	require.NoError(t, err)
	require.Equal(t, 10, output.Limit)

	output, err = svc.Query(context.Background(), QueryEventsInput{Limit: -1, Offset: -4})
	require.NoError(t, err)
	require.Equal(t, 10, output.Limit)
	require.Zero(t, output.Offset)
}

func TestEventService_Purge(t *testing.T) {
	repo := NewMockEventRepository()
	svc := newTestEventService(repo)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.Record(context.Background(), &domain.Event{
		Type:      domain.EventLoginFailed,
		CreatedAt: now.Add(-31 * 24 * time.Hour),
	})
	svc.Record(context.Background(), &domain.Event{
		Type:      domain.EventLoginSuccess,
		CreatedAt: now.Add(-time.Hour),
	})

	admin := &domain.User{ID: 1, Username: "root", IsAdmin: true}
	removed, err := svc.Purge(context.Background(), admin, "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	// The purge itself lands in the audit log.
	require.True(t, repo.hasEvent(domain.EventSIEMPurged))
	require.False(t, repo.hasEvent(domain.EventLoginFailed))
	require.True(t, repo.hasEvent(domain.EventLoginSuccess))
}

func TestEventService_PurgeSkipsWhenLocked(t *testing.T) {
	repo := NewMockEventRepository()
	locker := lock.NewMemoryLocker()
	svc := NewEventService(repo, locker, nil, domain.DefaultEventRetention, 1000, zerolog.Nop())

	held, err := locker.Acquire(context.Background(), lock.Keys.EventPurge(), time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	removed, err := svc.Purge(context.Background(), nil, "")
	require.NoError(t, err)
	require.Zero(t, removed)
	require.False(t, repo.hasEvent(domain.EventSIEMPurged))
}
