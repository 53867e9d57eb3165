package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mintoons/internal/database"
	"mintoons/internal/models"
)

// UserRepository handles database operations for users and reset tokens
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *UserRepository) WithTx(tx *database.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, email, password_hash, name, pen_name, role, subscription_tier, subscription_status,
	is_active, total_stories, total_words, stories_this_month, email_competition_updates, email_quota_reset,
	created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.PenName,
		&user.Role,
		&user.SubscriptionTier,
		&user.SubscriptionStatus,
		&user.IsActive,
		&user.TotalStories,
		&user.TotalWords,
		&user.StoriesThisMonth,
		&user.EmailCompetitionUpdates,
		&user.EmailQuotaReset,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a new user. The first user becomes an admin, everyone
// after that starts as a child.
func (r *UserRepository) CreateUser(ctx context.Context, email, passwordHash, name, penName string) (*models.User, error) {
	var userCount int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	role := models.RoleChild
	if userCount == 0 {
		role = models.RoleAdmin
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO users (email, password_hash, name, pen_name, role, subscription_tier, subscription_status,
			is_active, email_competition_updates, email_quota_reset, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, email, passwordHash, name, penName, role,
		models.TierFree, models.SubscriptionActive, true, true, true, now, now)
	if err != nil {
		if err = mapError(r.db, err); errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{
		ID:                      id,
		Email:                   email,
		PasswordHash:            passwordHash,
		Name:                    name,
		PenName:                 penName,
		Role:                    role,
		SubscriptionTier:        models.TierFree,
		SubscriptionStatus:      models.SubscriptionActive,
		IsActive:                true,
		EmailCompetitionUpdates: true,
		EmailQuotaReset:         true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns a page of users matching filter and the total match count
func (r *UserRepository) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var where []string
	var args []interface{}

	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, filter.Role)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(pen_name) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit, offset := pageOffset(filter.Page, filter.Limit)
	query := "SELECT " + userColumns + " FROM users" + whereClause + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// UpdateUser applies the non-nil fields of upd
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) error {
	var sets []string
	var args []interface{}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Role != nil {
		sets = append(sets, "role = ?")
		args = append(args, *upd.Role)
	}
	if upd.SubscriptionTier != nil {
		sets = append(sets, "subscription_tier = ?")
		args = append(args, *upd.SubscriptionTier)
	}
	if upd.SubscriptionStatus != nil {
		sets = append(sets, "subscription_status = ?")
		args = append(args, *upd.SubscriptionStatus)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// DeleteUser deletes a user; stories, turns, comments and submissions cascade
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// IncrementStoryCount bumps the lifetime and monthly story counters
func (r *UserRepository) IncrementStoryCount(ctx context.Context, id int64) error {
	query := `UPDATE users SET total_stories = total_stories + 1, stories_this_month = stories_this_month + 1,
		updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to increment story count: %w", err)
	}
	return nil
}

// AddWords adds to the user's lifetime word count
func (r *UserRepository) AddWords(ctx context.Context, id int64, words int) error {
	query := "UPDATE users SET total_words = total_words + ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, words, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to add words: %w", err)
	}
	return nil
}

// ResetMonthlyStoryCounts zeroes stories_this_month for everyone and
// returns how many rows changed
func (r *UserRepository) ResetMonthlyStoryCounts(ctx context.Context) (int64, error) {
	query := "UPDATE users SET stories_this_month = 0, updated_at = ? WHERE stories_this_month <> 0"
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset monthly story counts: %w", err)
	}
	return result.RowsAffected()
}

// ListQuotaResetRecipients returns active users who opted into quota emails
func (r *UserRepository) ListQuotaResetRecipients(ctx context.Context) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE is_active = ? AND email_quota_reset = ? ORDER BY id"
	rows, err := r.db.QueryContext(ctx, query, true, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list quota reset recipients: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// CreateResetToken stores a password reset token
func (r *UserRepository) CreateResetToken(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	query := "INSERT INTO password_reset_tokens (token, user_id, expires_at, used, created_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, token, userID, expiresAt.UTC(), false, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// GetResetToken retrieves a reset token, or nil when it doesn't exist
func (r *UserRepository) GetResetToken(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	query := "SELECT token, user_id, expires_at, created_at, used FROM password_reset_tokens WHERE token = ?"
	t := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt, &t.Used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return t, nil
}

// MarkResetTokenUsed consumes a token. It reports false when the token was
// already used.
func (r *UserRepository) MarkResetTokenUsed(ctx context.Context, token string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE password_reset_tokens SET used = ? WHERE token = ? AND used = ?", true, token, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark reset token used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
