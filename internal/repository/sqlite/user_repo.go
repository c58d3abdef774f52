package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/palisade-forum/palisade/internal/domain"
	"github.com/palisade-forum/palisade/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, is_admin, is_banned,
	has_private_access, email_verified, verification_token,
	failed_login_attempts, last_failed_login, created_at, last_login, created_by`

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, is_admin, is_banned,
			has_private_access, email_verified, verification_token,
			failed_login_attempts, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var token sql.NullString
	if user.VerificationToken != "" {
		token = sql.NullString{String: user.VerificationToken, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		boolToInt(user.IsAdmin),
		boolToInt(user.IsBanned),
		boolToInt(user.HasPrivateAccess),
		boolToInt(user.EmailVerified),
		token,
		user.FailedLoginAttempts,
		timeToString(user.CreatedAt),
		int64PtrToNull(user.CreatedBy),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username or email already exists", domain.ErrUserAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id

	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername retrieves a user by username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetByVerificationToken retrieves a user by pending email token.
func (r *userRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = ?`
	return r.scanUser(r.db.QueryRowContext(ctx, query, token))
}

// scanUser scans a single user row.
func (r *userRepository) scanUser(row *sql.Row) (*domain.User, error) {
	user := &domain.User{}
	var isAdmin, isBanned, hasPrivate, emailVerified int
	var verificationToken, lastFailedLogin, lastLogin sql.NullString
	var createdAt string
	var createdBy sql.NullInt64

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&isAdmin,
		&isBanned,
		&hasPrivate,
		&emailVerified,
		&verificationToken,
		&user.FailedLoginAttempts,
		&lastFailedLogin,
		&createdAt,
		&lastLogin,
		&createdBy,
	)

	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.IsAdmin = isAdmin != 0
	user.IsBanned = isBanned != 0
	user.HasPrivateAccess = hasPrivate != 0
	user.EmailVerified = emailVerified != 0
	if verificationToken.Valid {
		user.VerificationToken = verificationToken.String
	}
	user.LastFailedLogin = parseNullTime(lastFailedLogin)
	user.CreatedAt = parseTime(createdAt)
	user.LastLogin = parseNullTime(lastLogin)
	user.CreatedBy = nullInt64Ptr(createdBy)

	return user, nil
}

// ExistsByUsernameOrEmail checks for a duplicate username or email.
func (r *userRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`,
		username, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// RecordLoginFailure atomically increments the failure counter.
// The increment happens in the database so concurrent attempts against the
// same account cannot lose updates.
func (r *userRepository) RecordLoginFailure(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1, last_failed_login = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, timeToString(at), id)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RecordLoginSuccess resets the failure counter and stamps last login.
func (r *userRepository) RecordLoginSuccess(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, last_login = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, timeToString(at), id)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// MarkEmailVerified sets the verified flag and clears the token.
func (r *userRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	query := `UPDATE users SET email_verified = 1, verification_token = NULL WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *userRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetBanned updates the ban flag.
func (r *userRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = ? WHERE id = ?`, boolToInt(banned), id)
	if err != nil {
		return fmt.Errorf("failed to set ban status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetRoles updates the admin and private-access flags.
func (r *userRepository) SetRoles(ctx context.Context, id int64, isAdmin, hasPrivateAccess bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ?, has_private_access = ? WHERE id = ?`,
		boolToInt(isAdmin), boolToInt(hasPrivateAccess), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set roles: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Delete deletes a user by ID. Threads and replies cascade via foreign keys.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns users with content counts, newest first.
func (r *userRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.UserStats], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT ` + userColumns + `,
			(SELECT COUNT(*) FROM threads WHERE author_id = users.id AND is_deleted = 0) AS thread_count,
			(SELECT COUNT(*) FROM replies WHERE author_id = users.id AND is_deleted = 0) AS reply_count
		FROM users
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.UserStats
	for rows.Next() {
		u := &domain.UserStats{}
		var isAdmin, isBanned, hasPrivate, emailVerified int
		var verificationToken, lastFailedLogin, lastLogin sql.NullString
		var createdAt string
		var createdBy sql.NullInt64

		err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.Email,
			&u.PasswordHash,
			&isAdmin,
			&isBanned,
			&hasPrivate,
			&emailVerified,
			&verificationToken,
			&u.FailedLoginAttempts,
			&lastFailedLogin,
			&createdAt,
			&lastLogin,
			&createdBy,
			&u.ThreadCount,
			&u.ReplyCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		u.IsAdmin = isAdmin != 0
		u.IsBanned = isBanned != 0
		u.HasPrivateAccess = hasPrivate != 0
		u.EmailVerified = emailVerified != 0
		u.LastFailedLogin = parseNullTime(lastFailedLogin)
		u.CreatedAt = parseTime(createdAt)
		u.LastLogin = parseNullTime(lastLogin)
		u.CreatedBy = nullInt64Ptr(createdBy)

		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return &repository.ListResult[domain.UserStats]{
		Items:  users,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// Ensure userRepository implements repository.UserRepository.
var _ repository.UserRepository = (*userRepository)(nil)
