package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/lock"
	"github.com/palisade-forum/palisade/internal/pkg/crypto"
	"github.com/palisade-forum/palisade/internal/repository"
)

// AccessKeyService manages single-use registration keys.
type AccessKeyService struct {
	keyRepo repository.AccessKeyRepository
	locker  lock.Locker
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAccessKeyService creates a new AccessKeyService.
func NewAccessKeyService(
	keyRepo repository.AccessKeyRepository,
	locker lock.Locker,
	logger zerolog.Logger,
) *AccessKeyService {
	return &AccessKeyService{
		keyRepo: keyRepo,
		locker:  locker,
		now:     time.Now,
		logger:  logger.With().Str("service", "accesskey").Logger(),
	}
}

// GenerateInput contains the data needed to mint registration keys.
type GenerateInput struct {
	Count     int
	CreatedBy int64
}

// GenerateOutput contains the minted keys.
type GenerateOutput struct {
	Keys []*domain.AccessKey
}

// Generate mints a batch of registration keys.
func (s *AccessKeyService) Generate(ctx context.Context, input GenerateInput) (*GenerateOutput, error) {
	if input.Count < domain.MinKeyBatch || input.Count > domain.MaxKeyBatch {
		return nil, ErrInvalidKeyCount
	}

	keys := make([]*domain.AccessKey, 0, input.Count)
	for i := 0; i < input.Count; i++ {
		code, err := crypto.GenerateAccessKeyCode()
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to generate key code")
			return nil, ErrInternalError
		}

		key := domain.NewAccessKey(code, input.CreatedBy)
		if err := s.keyRepo.Create(ctx, key); err != nil {
			s.logger.Error().Err(err).Msg("failed to store registration key")
			return nil, ErrInternalError
		}
		keys = append(keys, key)
	}

	s.logger.Info().
		Int("count", len(keys)).
		Int64("created_by", input.CreatedBy).
		Msg("registration keys generated")

	return &GenerateOutput{Keys: keys}, nil
}

// Redeem consumes a registration key for a freshly created user. The key is
// claimed with a conditional update so only one registration can win it; a
// short lock serializes racing redemptions across instances before they
// reach the database.
func (s *AccessKeyService) Redeem(ctx context.Context, code string, userID int64) error {
	lockKey := lock.Keys.AccessKeyRedeem(code)
	acquired, err := s.locker.AcquireWithRetry(ctx, lockKey, 5*time.Second, 3, 50*time.Millisecond)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to acquire redemption lock")
		return ErrInternalError
	}
	if !acquired {
		return ErrKeyRedemptionBusy
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release redemption lock")
		}
	}()

	// Distinguish unknown/revoked keys from already-used ones.
	if _, err := s.keyRepo.GetActiveByCode(ctx, code); err != nil {
		if errors.Is(err, domain.ErrAccessKeyInvalid) {
			return domain.ErrAccessKeyInvalid
		}
		s.logger.Error().Err(err).Msg("failed to look up registration key")
		return ErrInternalError
	}

	if err := s.keyRepo.Redeem(ctx, code, userID, s.now().UTC()); err != nil {
		if errors.Is(err, domain.ErrAccessKeyUsed) {
			return domain.ErrAccessKeyUsed
		}
		s.logger.Error().Err(err).Msg("failed to redeem registration key")
		return ErrInternalError
	}

	s.logger.Info().Int64("user_id", userID).Msg("registration key redeemed")
	return nil
}

// List returns all keys, newest first, with creator and redeemer usernames.
func (s *AccessKeyService) List(ctx context.Context) ([]*domain.AccessKey, error) {
	keys, err := s.keyRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list registration keys")
		return nil, ErrInternalError
	}
	return keys, nil
}

// Delete revokes a key by ID.
func (s *AccessKeyService) Delete(ctx context.Context, id int64) error {
	if err := s.keyRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrAccessKeyNotFound) {
			return domain.ErrAccessKeyNotFound
		}
		s.logger.Error().Err(err).Int64("key_id", id).Msg("failed to delete registration key")
		return ErrInternalError
	}
	return nil
}
