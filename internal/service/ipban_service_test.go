package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/palisade-forum/palisade/internal/domain"
)

func newIPBanServiceFixture() (*IPBanService, *MockIPBanRepository, *MockEventRepository) {
	banRepo := NewMockIPBanRepository()
	eventRepo := NewMockEventRepository()
	svc := NewIPBanService(banRepo, newTestEventService(eventRepo), nil, zerolog.Nop())
	return svc, banRepo, eventRepo
}

func TestIPBanService_BanAndCheck(t *testing.T) {
	svc, _, eventRepo := newIPBanServiceFixture()
	admin := &domain.User{ID: 1, Username: "root", IsAdmin: true}

	ban, err := svc.Ban(context.Background(), BanInput{
		IP:     "203.0.113.7",
		Reason: "credential stuffing",
		Actor:  admin,
	})
	require.NoError(t, err)
	require.Nil(t, ban.ExpiresAt)

	banned, err := svc.CheckBanned(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.True(t, banned)

	banned, err = svc.CheckBanned(context.Background(), "203.0.113.8")
	require.NoError(t, err)
	require.False(t, banned)

	require.True(t, eventRepo.hasEvent(domain.EventIPBanned))
}

func TestIPBanService_BanInvalidIP(t *testing.T) {
	svc, _, _ := newIPBanServiceFixture()

	_, err := svc.Ban(context.Background(), BanInput{IP: "not-an-ip", Reason: "test"})
	require.ErrorIs(t, err, ErrInvalidIP)
}

func TestIPBanService_BanDuplicate(t *testing.T) {
	svc, _, _ := newIPBanServiceFixture()

	_, err := svc.Ban(context.Background(), BanInput{IP: "203.0.113.7", Reason: "first"})
	require.NoError(t, err)

	_, err = svc.Ban(context.Background(), BanInput{IP: "203.0.113.7", Reason: "second"})
	require.ErrorIs(t, err, domain.ErrIPAlreadyBanned)
}

func TestIPBanService_TemporaryBanExpires(t *testing.T) {
	svc, _, _ := newIPBanServiceFixture()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Ban(context.Background(), BanInput{
		IP:       "203.0.113.7",
		Reason:   "cooling off",
		Duration: time.Hour,
	})
	require.NoError(t, err)

	banned, err := svc.CheckBanned(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.True(t, banned)

	now = now.Add(2 * time.Hour)
	banned, err = svc.CheckBanned(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.False(t, banned)
}

func TestIPBanService_Unban(t *testing.T) {
	svc, _, eventRepo := newIPBanServiceFixture()

	ban, err := svc.Ban(context.Background(), BanInput{IP: "203.0.113.7", Reason: "test"})
	require.NoError(t, err)

	require.NoError(t, svc.Unban(context.Background(), ban.ID, nil, RequestMeta{}))

	banned, err := svc.CheckBanned(context.Background(), "203.0.113.7")
	require.NoError(t, err)
	require.False(t, banned)
	require.True(t, eventRepo.hasEvent(domain.EventIPUnbanned))

	require.ErrorIs(t, svc.Unban(context.Background(), ban.ID, nil, RequestMeta{}), domain.ErrIPBanNotFound)
}

func TestIPBanService_RecordBlocked(t *testing.T) {
	svc, _, eventRepo := newIPBanServiceFixture()

	svc.RecordBlocked(context.Background(), RequestMeta{IP: "203.0.113.7", Endpoint: "/api/threads"})

	event := eventRepo.lastEvent()
	require.NotNil(t, event)
	require.Equal(t, domain.EventBannedIPAttempt, event.Type)
	require.Equal(t, domain.SeverityCritical, event.Severity)
}
