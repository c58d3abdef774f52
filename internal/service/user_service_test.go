package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/palisade-forum/palisade/internal/config"
	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/lock"
)

// testAuthConfig uses the cheapest bcrypt cost so tests stay fast.
func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		SessionTTL:       24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		LockoutThreshold: 5,
		LockoutDuration:  15 * time.Minute,
	}
}

type userServiceFixture struct {
	svc       *UserService
	userRepo  *MockUserRepository
	keyRepo   *MockAccessKeyRepository
	eventRepo *MockEventRepository
	sessions  *SessionService
}

func newUserServiceFixture(t *testing.T, requireKey bool) *userServiceFixture {
	t.Helper()

	userRepo := NewMockUserRepository()
	keyRepo := NewMockAccessKeyRepository()
	eventRepo := NewMockEventRepository()
	events := newTestEventService(eventRepo)
	keys := NewAccessKeyService(keyRepo, lock.NewNoOpLocker(), zerolog.Nop())
	sessions := NewSessionService(24*time.Hour, nil, zerolog.Nop())

	svc := NewUserService(userRepo, keys, sessions, events, nil, testAuthConfig(), requireKey, zerolog.Nop())

	return &userServiceFixture{
		svc:       svc,
		userRepo:  userRepo,
		keyRepo:   keyRepo,
		eventRepo: eventRepo,
		sessions:  sessions,
	}
}

// seedUser registers a user directly against the mock repository.
func (f *userServiceFixture) seedUser(t *testing.T, username, password string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := domain.NewUser(username, username+"@example.com", string(hash))
	require.NoError(t, f.userRepo.Create(context.Background(), user))
	return user
}

func TestUserService_Register(t *testing.T) {
	tests := []struct {
		name       string
		requireKey bool
		input      RegisterInput
		setup      func(*userServiceFixture)
		wantErr    error
	}{
		{
			name:       "success without key requirement",
			requireKey: false,
			input: RegisterInput{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "correct-horse",
			},
		},
		{
			name:       "invalid username",
			requireKey: false,
			input: RegisterInput{
				Username: "a!",
				Email:    "a@example.com",
				Password: "correct-horse",
			},
			wantErr: ErrInvalidUsername,
		},
		{
			name:       "invalid email",
			requireKey: false,
			input: RegisterInput{
				Username: "alice",
				Email:    "not-an-email",
				Password: "correct-horse",
			},
			wantErr: ErrInvalidEmail,
		},
		{
			name:       "short password",
			requireKey: false,
			input: RegisterInput{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "short",
			},
			wantErr: ErrInvalidPassword,
		},
		{
			name:       "missing key when required",
			requireKey: true,
			input: RegisterInput{
				Username: "alice",
				Email:    "alice@example.com",
				Password: "correct-horse",
			},
			wantErr: ErrRegistrationKeyRequired,
		},
		{
			name:       "unknown key",
			requireKey: true,
			input: RegisterInput{
				Username:  "alice",
				Email:     "alice@example.com",
				Password:  "correct-horse",
				AccessKey: "NOPE-NOPE-NOPE-NOPE",
			},
			wantErr: domain.ErrAccessKeyInvalid,
		},
		{
			name:       "duplicate username",
			requireKey: false,
			input: RegisterInput{
				Username: "taken",
				Email:    "new@example.com",
				Password: "correct-horse",
			},
			setup: func(f *userServiceFixture) {
				f.seedUser(t, "taken", "whatever-pw")
			},
			wantErr: domain.ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUserServiceFixture(t, tt.requireKey)
			if tt.setup != nil {
				tt.setup(f)
			}

			user, err := f.svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotZero(t, user.ID)
			require.NotEmpty(t, user.VerificationToken)
			require.False(t, user.EmailVerified)
			require.True(t, f.eventRepo.hasEvent(domain.EventUserRegistered))
		})
	}
}

func TestUserService_RegisterConsumesKey(t *testing.T) {
	f := newUserServiceFixture(t, true)

	key := domain.NewAccessKey("AB12-CD34-EF56-0910", 1)
	require.NoError(t, f.keyRepo.Create(context.Background(), key))

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "correct-horse",
		AccessKey: key.Code,
	})
	require.NoError(t, err)
	require.True(t, user.HasPrivateAccess)

	// The same key cannot register a second account.
	_, err = f.svc.Register(context.Background(), RegisterInput{
		Username:  "bob",
		Email:     "bob@example.com",
		Password:  "correct-horse",
		AccessKey: key.Code,
	})
	require.ErrorIs(t, err, domain.ErrAccessKeyInvalid)
}

func TestUserService_VerifyEmail(t *testing.T) {
	f := newUserServiceFixture(t, false)

	user, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	verified, err := f.svc.VerifyEmail(context.Background(), user.VerificationToken, RequestMeta{})
	require.NoError(t, err)
	require.True(t, verified.EmailVerified)
	require.True(t, f.eventRepo.hasEvent(domain.EventEmailVerified))

	// The token is single use.
	_, err = f.svc.VerifyEmail(context.Background(), user.VerificationToken, RequestMeta{})
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserService_Authenticate(t *testing.T) {
	f := newUserServiceFixture(t, false)
	f.seedUser(t, "alice", "correct-horse")

	user, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "alice",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.NotNil(t, user.LastLogin)
	require.True(t, f.eventRepo.hasEvent(domain.EventLoginSuccess))
}

func TestUserService_AuthenticateWrongPassword(t *testing.T) {
	f := newUserServiceFixture(t, false)
	seeded := f.seedUser(t, "alice", "correct-horse")

	_, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "alice",
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.Equal(t, 1, f.userRepo.users[seeded.ID].FailedLoginAttempts)
	require.True(t, f.eventRepo.hasEvent(domain.EventLoginFailed))
}

func TestUserService_AuthenticateUnknownUser(t *testing.T) {
	f := newUserServiceFixture(t, false)

	_, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "ghost",
		Password: "whatever-pw",
	})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestUserService_AuthenticateLockout(t *testing.T) {
	f := newUserServiceFixture(t, false)
	f.seedUser(t, "alice", "correct-horse")

	for i := 0; i < 5; i++ {
		_, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
			Username: "alice",
			Password: "wrong-password",
		})
		require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	}

	// Even the correct password is rejected while locked.
	_, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "alice",
		Password: "correct-horse",
	})
	require.ErrorIs(t, err, domain.ErrAccountLocked)
	require.True(t, f.eventRepo.hasEvent(domain.EventAccountLocked))
}

func TestUserService_AuthenticateLockoutExpires(t *testing.T) {
	f := newUserServiceFixture(t, false)
	seeded := f.seedUser(t, "alice", "correct-horse")

	past := time.Now().UTC().Add(-16 * time.Minute)
	f.userRepo.users[seeded.ID].FailedLoginAttempts = 5
	f.userRepo.users[seeded.ID].LastFailedLogin = &past

	user, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "alice",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	require.Zero(t, user.FailedLoginAttempts)
}

func TestUserService_AuthenticateBanned(t *testing.T) {
	f := newUserServiceFixture(t, false)
	seeded := f.seedUser(t, "alice", "correct-horse")
	f.userRepo.users[seeded.ID].IsBanned = true

	_, err := f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "alice",
		Password: "correct-horse",
	})
	require.ErrorIs(t, err, domain.ErrUserBanned)
	require.True(t, f.eventRepo.hasEvent(domain.EventBannedLoginAttempt))
}

func TestUserService_ChangePassword(t *testing.T) {
	f := newUserServiceFixture(t, false)
	seeded := f.seedUser(t, "alice", "correct-horse")

	err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      seeded.ID,
		OldPassword: "correct-horse",
		NewPassword: "battery-staple",
	})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), AuthenticateInput{
		Username: "alice",
		Password: "battery-staple",
	})
	require.NoError(t, err)
}

func TestUserService_ChangePasswordWrongCurrent(t *testing.T) {
	f := newUserServiceFixture(t, false)
	seeded := f.seedUser(t, "alice", "correct-horse")

	err := f.svc.ChangePassword(context.Background(), ChangePasswordInput{
		UserID:      seeded.ID,
		OldPassword: "wrong-password",
		NewPassword: "battery-staple",
	})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.True(t, f.eventRepo.hasEvent(domain.EventPasswordChangeFail))
}

func TestUserService_SetBannedSelfTarget(t *testing.T) {
	f := newUserServiceFixture(t, false)
	admin := f.seedUser(t, "admin", "correct-horse")
	admin.IsAdmin = true

	_, err := f.svc.SetBanned(context.Background(), admin, admin.ID, true, RequestMeta{})
	require.ErrorIs(t, err, domain.ErrSelfTarget)
}

func TestUserService_SetBannedRevokesSessions(t *testing.T) {
	f := newUserServiceFixture(t, false)
	admin := f.seedUser(t, "admin", "correct-horse")
	target := f.seedUser(t, "target", "correct-horse")

	session := f.sessions.Create(target.ID)

	banned, err := f.svc.SetBanned(context.Background(), admin, target.ID, true, RequestMeta{})
	require.NoError(t, err)
	require.True(t, banned.IsBanned)

	_, err = f.sessions.Get(session.Token)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
	require.True(t, f.eventRepo.hasEvent(domain.EventUserBanChanged))
}

func TestUserService_DeleteUserSelfTarget(t *testing.T) {
	f := newUserServiceFixture(t, false)
	admin := f.seedUser(t, "admin", "correct-horse")

	err := f.svc.DeleteUser(context.Background(), admin, admin.ID, RequestMeta{})
	require.ErrorIs(t, err, domain.ErrSelfTarget)
}

func TestUserService_CreateUserByAdmin(t *testing.T) {
	f := newUserServiceFixture(t, true)
	admin := f.seedUser(t, "admin", "correct-horse")
	admin.IsAdmin = true

	// Admin creation bypasses the registration key requirement.
	user, err := f.svc.CreateUser(context.Background(), CreateUserInput{
		Username: "staffer",
		Email:    "staffer@example.com",
		Password: "correct-horse",
		IsAdmin:  true,
		Actor:    admin,
	})
	require.NoError(t, err)
	require.True(t, user.IsAdmin)
	require.True(t, user.EmailVerified)
	require.NotNil(t, user.CreatedBy)
	require.Equal(t, admin.ID, *user.CreatedBy)
	require.True(t, f.eventRepo.hasEvent(domain.EventUserCreatedByAdmin))
}

func TestUserService_SetRoles(t *testing.T) {
	f := newUserServiceFixture(t, false)
	admin := f.seedUser(t, "admin", "correct-horse")
	target := f.seedUser(t, "target", "correct-horse")

	updated, err := f.svc.SetRoles(context.Background(), admin, target.ID, false, true, RequestMeta{})
	require.NoError(t, err)
	require.False(t, updated.IsAdmin)
	require.True(t, updated.HasPrivateAccess)
	require.True(t, f.eventRepo.hasEvent(domain.EventUserRoleChanged))
}
