package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/lock"
)

func newAccessKeyService() (*AccessKeyService, *MockAccessKeyRepository) {
	repo := NewMockAccessKeyRepository()
	return NewAccessKeyService(repo, lock.NewNoOpLocker(), zerolog.Nop()), repo
}

func TestAccessKeyService_Generate(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr error
	}{
		{name: "single key", count: 1},
		{name: "full batch", count: 50},
		{name: "zero", count: 0, wantErr: ErrInvalidKeyCount},
		{name: "negative", count: -3, wantErr: ErrInvalidKeyCount},
		{name: "over batch limit", count: 51, wantErr: ErrInvalidKeyCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAccessKeyService()

			output, err := svc.Generate(context.Background(), GenerateInput{
				Count:     tt.count,
				CreatedBy: 1,
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, output.Keys, tt.count)

			seen := make(map[string]bool)
			for _, key := range output.Keys {
				require.True(t, key.IsActive)
				require.Regexp(t, `^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`, key.Code)
				require.False(t, seen[key.Code])
				seen[key.Code] = true
			}
		})
	}
}

func TestAccessKeyService_Redeem(t *testing.T) {
	svc, repo := newAccessKeyService()

	key := domain.NewAccessKey("AAAA-BBBB-CCCC-DDDD", 1)
	require.NoError(t, repo.Create(context.Background(), key))

	require.NoError(t, svc.Redeem(context.Background(), key.Code, 42))

	stored := repo.keys[key.ID]
	require.False(t, stored.IsActive)
	require.NotNil(t, stored.UsedBy)
	require.Equal(t, int64(42), *stored.UsedBy)
	require.NotNil(t, stored.UsedAt)
}

func TestAccessKeyService_RedeemUnknownKey(t *testing.T) {
	svc, _ := newAccessKeyService()

	err := svc.Redeem(context.Background(), "ZZZZ-ZZZZ-ZZZZ-ZZZZ", 42)
	require.ErrorIs(t, err, domain.ErrAccessKeyInvalid)
}

func TestAccessKeyService_RedeemTwice(t *testing.T) {
	svc, repo := newAccessKeyService()

	key := domain.NewAccessKey("AAAA-BBBB-CCCC-DDDD", 1)
	require.NoError(t, repo.Create(context.Background(), key))

	require.NoError(t, svc.Redeem(context.Background(), key.Code, 42))

	// The second redemption must not reassign the key.
	err := svc.Redeem(context.Background(), key.Code, 43)
	require.Error(t, err)
	require.Equal(t, int64(42), *repo.keys[key.ID].UsedBy)
}

func TestAccessKeyService_Delete(t *testing.T) {
	svc, repo := newAccessKeyService()

	key := domain.NewAccessKey("AAAA-BBBB-CCCC-DDDD", 1)
	require.NoError(t, repo.Create(context.Background(), key))

	require.NoError(t, svc.Delete(context.Background(), key.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), key.ID), domain.ErrAccessKeyNotFound)
}
