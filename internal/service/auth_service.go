package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mintoons/internal/database"
	"mintoons/internal/models"
	"mintoons/internal/penname"
	"mintoons/internal/repository"
	"mintoons/internal/security"
	"mintoons/internal/validation"
)

const resetTokenTTL = time.Hour

// LoginResult is a signed bearer token and the user it belongs to
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// AuthService handles authentication business logic
type AuthService struct {
	db       *database.DB
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	tokens   *security.TokenManager
	mailer   Mailer
	logger   *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(db *database.DB, tokens *security.TokenManager, mailer Mailer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		db:       db,
		users:    repository.NewUserRepository(db),
		settings: repository.NewSettingsRepository(db),
		tokens:   tokens,
		mailer:   mailer,
		logger:   logger.Named("AuthService"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with a generated pen name
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AllowRegistration {
		return nil, ErrRegistrationClosed
	}

	existingUser, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	penName, err := penname.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pen name: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, passwordHash, name, penName)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("userID", user.ID), zap.String("role", string(user.Role)))
	if err := s.mailer.SendWelcome(ctx, user); err != nil {
		s.logger.Warn("Failed to send welcome email", zap.Int64("userID", user.ID), zap.Error(err))
	}
	return user, nil
}

// Login authenticates a user and issues a bearer token
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate resolves a bearer token to its active user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, security.ErrTokenInvalid
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

// Me returns the current user
func (s *AuthService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RequestPasswordReset emails a one-hour reset link. Unknown addresses are
// ignored so callers can't probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		s.logger.Debug("Password reset requested for unknown or disabled account")
		return nil
	}

	token, err := security.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	if err := s.users.CreateResetToken(ctx, token, user.ID, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user, token); err != nil {
		s.logger.Error("Failed to send password reset email", zap.Int64("userID", user.ID), zap.Error(err))
		return err
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed in the same transaction as the password change.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	resetToken, err := s.users.GetResetToken(ctx, token)
	if err != nil {
		return err
	}
	if resetToken == nil {
		return ErrInvalidResetToken
	}
	if resetToken.Used {
		return ErrResetTokenUsed
	}
	if resetToken.IsExpired() {
		return ErrResetTokenExpired
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		users := s.users.WithTx(tx)
		consumed, err := users.MarkResetTokenUsed(ctx, token)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrResetTokenUsed
		}
		return users.UpdatePassword(ctx, resetToken.UserID, passwordHash)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Password reset", zap.Int64("userID", resetToken.UserID))
	return nil
}
