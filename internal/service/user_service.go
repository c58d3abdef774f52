package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/palisade-forum/palisade/internal/config"
	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/metrics"
	"github.com/palisade-forum/palisade/internal/pkg/crypto"
	"github.com/palisade-forum/palisade/internal/repository"
)

// usernamePattern restricts usernames to 3-50 word characters or hyphens.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// RequestMeta carries the client context of the request driving an
// operation, for the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
	Endpoint  string
}

// Event builds an audit event skeleton from the request context.
func (m RequestMeta) Event(eventType string, severity domain.Severity) *domain.Event {
	return &domain.Event{
		Type:      eventType,
		Severity:  severity,
		IPAddress: m.IP,
		UserAgent: m.UserAgent,
		Endpoint:  m.Endpoint,
	}
}

// UserService handles registration, authentication and account management.
type UserService struct {
	userRepo repository.UserRepository
	keys     *AccessKeyService
	sessions *SessionService
	events   *EventService
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	authCfg    config.AuthConfig
	requireKey bool
	now        func() time.Time
}

// NewUserService creates a new UserService. The metrics collector may be nil.
func NewUserService(
	userRepo repository.UserRepository,
	keys *AccessKeyService,
	sessions *SessionService,
	events *EventService,
	m *metrics.Metrics,
	authCfg config.AuthConfig,
	requireKey bool,
	logger zerolog.Logger,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		keys:       keys,
		sessions:   sessions,
		events:     events,
		metrics:    m,
		authCfg:    authCfg,
		requireKey: requireKey,
		now:        time.Now,
		logger:     logger.With().Str("service", "user").Logger(),
	}
}

// =============================================================================
// Registration
// =============================================================================

// RegisterInput contains the data needed to self-register an account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	AccessKey string
	Meta      RequestMeta
}

// Register creates a new account. When registration keys are required, the
// supplied key is validated up front and consumed once the account exists;
// losing the redemption race rolls the account back.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := validateCredentials(input.Username, input.Email, input.Password); err != nil {
		return nil, err
	}

	if s.requireKey {
		if input.AccessKey == "" {
			return nil, ErrRegistrationKeyRequired
		}
		// Fast pre-check so duplicate-account work is skipped for dead keys.
		if err := s.checkKey(ctx, input); err != nil {
			return nil, err
		}
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check account uniqueness")
		return nil, ErrInternalError
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.authCfg.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, ErrInternalError
	}

	token, err := crypto.GenerateVerificationToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to generate verification token")
		return nil, ErrInternalError
	}

	user := domain.NewUser(input.Username, input.Email, string(hash))
	user.VerificationToken = token
	if s.requireKey {
		user.HasPrivateAccess = true
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, ErrInternalError
	}

	if s.requireKey {
		if err := s.keys.Redeem(ctx, input.AccessKey, user.ID); err != nil {
			// Lost the race for the key: the account must not survive.
			if delErr := s.userRepo.Delete(ctx, user.ID); delErr != nil {
				s.logger.Error().Err(delErr).Int64("user_id", user.ID).Msg("failed to roll back user after key redemption loss")
			}
			event := input.Meta.Event(domain.EventRegistrationFailed, domain.SeverityMedium)
			event.Username = input.Username
			event.Details = map[string]any{"reason": "key_redemption_failed"}
			s.events.Record(ctx, event)
			return nil, err
		}
	}

	event := input.Meta.Event(domain.EventUserRegistered, domain.SeverityLow)
	event.UserID = &user.ID
	event.Username = user.Username
	s.events.Record(ctx, event)

	// Mail delivery is not wired; surface the link for the operator.
	s.logger.Info().
		Str("username", user.Username).
		Str("email", user.Email).
		Str("verification_token", token).
		Msg("verification email pending delivery")

	return user, nil
}

// checkKey verifies the registration key exists and is still redeemable.
func (s *UserService) checkKey(ctx context.Context, input RegisterInput) error {
	_, err := s.keys.keyRepo.GetActiveByCode(ctx, input.AccessKey)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrAccessKeyInvalid) {
		event := input.Meta.Event(domain.EventRegistrationFailed, domain.SeverityMedium)
		event.Username = input.Username
		event.Details = map[string]any{"reason": "invalid_key"}
		s.events.Record(ctx, event)
		return domain.ErrAccessKeyInvalid
	}
	s.logger.Error().Err(err).Msg("failed to look up registration key")
	return ErrInternalError
}

// VerifyEmail marks the account matching the token as verified.
func (s *UserService) VerifyEmail(ctx context.Context, token string, meta RequestMeta) (*domain.User, error) {
	user, err := s.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.events.Record(ctx, meta.Event(domain.EventEmailVerifyFailed, domain.SeverityMedium))
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Msg("failed to look up verification token")
		return nil, ErrInternalError
	}

	if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to mark email verified")
		return nil, ErrInternalError
	}
	user.EmailVerified = true
	user.VerificationToken = ""

	event := meta.Event(domain.EventEmailVerified, domain.SeverityLow)
	event.UserID = &user.ID
	event.Username = user.Username
	s.events.Record(ctx, event)

	return user, nil
}

// =============================================================================
// Authentication
// =============================================================================

// AuthenticateInput contains login credentials plus request context.
type AuthenticateInput struct {
	Username string
	Password string
	Meta     RequestMeta
}

// Authenticate verifies credentials, enforcing the ban flag and the
// failed-login lockout before the password is even checked.
func (s *UserService) Authenticate(ctx context.Context, input AuthenticateInput) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			event := input.Meta.Event(domain.EventLoginFailed, domain.SeverityMedium)
			event.Username = input.Username
			event.Details = map[string]any{"reason": "unknown_user"}
			s.events.Record(ctx, event)
			s.countLogin("failure")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to look up user")
		return nil, ErrInternalError
	}

	if user.IsBanned {
		event := input.Meta.Event(domain.EventBannedLoginAttempt, domain.SeverityHigh)
		event.UserID = &user.ID
		event.Username = user.Username
		s.events.Record(ctx, event)
		s.countLogin("banned")
		return nil, domain.ErrUserBanned
	}

	now := s.now().UTC()
	if user.IsLockedOut(now, s.authCfg.LockoutThreshold, s.authCfg.LockoutDuration) {
		event := input.Meta.Event(domain.EventAccountLocked, domain.SeverityHigh)
		event.UserID = &user.ID
		event.Username = user.Username
		event.Details = map[string]any{"failed_attempts": user.FailedLoginAttempts}
		s.events.Record(ctx, event)
		s.countLogin("locked")
		return nil, domain.ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		if recErr := s.userRepo.RecordLoginFailure(ctx, user.ID, now); recErr != nil {
			s.logger.Error().Err(recErr).Int64("user_id", user.ID).Msg("failed to record login failure")
		}
		event := input.Meta.Event(domain.EventLoginFailed, domain.SeverityMedium)
		event.UserID = &user.ID
		event.Username = user.Username
		event.Details = map[string]any{"failed_attempts": user.FailedLoginAttempts + 1}
		s.events.Record(ctx, event)
		s.countLogin("failure")
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to record login success")
		return nil, ErrInternalError
	}
	user.FailedLoginAttempts = 0
	user.LastFailedLogin = nil
	user.LastLogin = &now

	event := input.Meta.Event(domain.EventLoginSuccess, domain.SeverityLow)
	event.UserID = &user.ID
	event.Username = user.Username
	s.events.Record(ctx, event)
	s.countLogin("success")

	return user, nil
}

// GetByID fetches a user, typically to back a session.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, ErrInternalError
	}
	return user, nil
}

// ChangePasswordInput contains the data needed to rotate a password.
type ChangePasswordInput struct {
	UserID      int64
	OldPassword string
	NewPassword string
	Meta        RequestMeta
}

// ChangePassword verifies the current password and stores a new hash.
func (s *UserService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if len(input.NewPassword) < minPasswordLength {
		return ErrInvalidPassword
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", input.UserID).Msg("failed to get user")
		return ErrInternalError
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.OldPassword)); err != nil {
		event := input.Meta.Event(domain.EventPasswordChangeFail, domain.SeverityMedium)
		event.UserID = &user.ID
		event.Username = user.Username
		s.events.Record(ctx, event)
		return domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), s.authCfg.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return ErrInternalError
	}

	if err := s.userRepo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to update password")
		return ErrInternalError
	}

	event := input.Meta.Event(domain.EventPasswordChanged, domain.SeverityMedium)
	event.UserID = &user.ID
	event.Username = user.Username
	s.events.Record(ctx, event)

	return nil
}

// =============================================================================
// Admin Operations
// =============================================================================

// CreateUserInput contains the data for an admin-created account.
type CreateUserInput struct {
	Username         string
	Email            string
	Password         string
	IsAdmin          bool
	HasPrivateAccess bool
	Actor            *domain.User
	Meta             RequestMeta
}

// CreateUser creates an account on behalf of an admin. No registration key
// is consumed and the email starts verified.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if err := validateCredentials(input.Username, input.Email, input.Password); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check account uniqueness")
		return nil, ErrInternalError
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.authCfg.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, ErrInternalError
	}

	user := domain.NewUser(input.Username, input.Email, string(hash))
	user.IsAdmin = input.IsAdmin
	user.HasPrivateAccess = input.HasPrivateAccess
	user.EmailVerified = true
	if input.Actor != nil {
		user.CreatedBy = &input.Actor.ID
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.ErrUserAlreadyExists
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, ErrInternalError
	}

	event := input.Meta.Event(domain.EventUserCreatedByAdmin, domain.SeverityMedium)
	if input.Actor != nil {
		event.UserID = &input.Actor.ID
		event.Username = input.Actor.Username
	}
	event.Details = map[string]any{
		"created_user_id":  user.ID,
		"created_username": user.Username,
		"is_admin":         user.IsAdmin,
	}
	s.events.Record(ctx, event)

	return user, nil
}

// ListUsers returns users with content counts for the admin console.
func (s *UserService) ListUsers(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.UserStats], error) {
	result, err := s.userRepo.List(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, ErrInternalError
	}
	return result, nil
}

// SetBanned flips the ban flag on a target account. Admins cannot ban
// themselves. Banning revokes every live session the target holds.
func (s *UserService) SetBanned(ctx context.Context, actor *domain.User, targetID int64, banned bool, meta RequestMeta) (*domain.User, error) {
	if actor != nil && actor.ID == targetID {
		return nil, domain.ErrSelfTarget
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to get user")
		return nil, ErrInternalError
	}

	if err := s.userRepo.SetBanned(ctx, targetID, banned); err != nil {
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to update ban flag")
		return nil, ErrInternalError
	}
	target.IsBanned = banned

	if banned && s.sessions != nil {
		s.sessions.DestroyAllForUser(targetID)
	}

	event := meta.Event(domain.EventUserBanChanged, domain.SeverityHigh)
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	event.Details = map[string]any{
		"target_user_id":  targetID,
		"target_username": target.Username,
		"banned":          banned,
	}
	s.events.Record(ctx, event)

	return target, nil
}

// SetRoles updates the admin and private-access flags on a target account.
func (s *UserService) SetRoles(ctx context.Context, actor *domain.User, targetID int64, isAdmin, hasPrivateAccess bool, meta RequestMeta) (*domain.User, error) {
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to get user")
		return nil, ErrInternalError
	}

	if err := s.userRepo.SetRoles(ctx, targetID, isAdmin, hasPrivateAccess); err != nil {
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to update roles")
		return nil, ErrInternalError
	}
	target.IsAdmin = isAdmin
	target.HasPrivateAccess = hasPrivateAccess

	event := meta.Event(domain.EventUserRoleChanged, domain.SeverityMedium)
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	event.Details = map[string]any{
		"target_user_id":     targetID,
		"target_username":    target.Username,
		"is_admin":           isAdmin,
		"has_private_access": hasPrivateAccess,
	}
	s.events.Record(ctx, event)

	return target, nil
}

// DeleteUser removes a target account and its content. Admins cannot
// delete themselves.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, targetID int64, meta RequestMeta) error {
	if actor != nil && actor.ID == targetID {
		return domain.ErrSelfTarget
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to get user")
		return ErrInternalError
	}

	if err := s.userRepo.Delete(ctx, targetID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("failed to delete user")
		return ErrInternalError
	}

	if s.sessions != nil {
		s.sessions.DestroyAllForUser(targetID)
	}

	event := meta.Event(domain.EventUserDeleted, domain.SeverityHigh)
	if actor != nil {
		event.UserID = &actor.ID
		event.Username = actor.Username
	}
	event.Details = map[string]any{
		"target_user_id":  targetID,
		"target_username": target.Username,
	}
	s.events.Record(ctx, event)

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// validateCredentials checks the shared account fields.
func validateCredentials(username, email, password string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// countLogin increments the login outcome counter when metrics are enabled.
func (s *UserService) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginAttempts.WithLabelValues(outcome).Inc()
	}
}
