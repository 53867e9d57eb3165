package service

import (
	"context"

	"go.uber.org/zap"

	"mintoons/internal/cache"
	"mintoons/internal/database"
	"mintoons/internal/models"
	"mintoons/internal/repository"
	"mintoons/internal/validation"
)

// UserPage is one page of the admin user list
type UserPage struct {
	Users []models.User `json:"users"`
	Total int           `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// QuotaResetResult reports what a monthly reset touched
type QuotaResetResult struct {
	UsersReset int64 `json:"usersReset"`
	EmailsSent int   `json:"emailsSent"`
}

// AdminService handles user administration, site settings and quota resets
type AdminService struct {
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	cache    cache.CompetitionCache
	mailer   Mailer
	logger   *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(db *database.DB, competitionCache cache.CompetitionCache, mailer Mailer, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if competitionCache == nil {
		competitionCache = cache.Noop{}
	}
	return &AdminService{
		users:    repository.NewUserRepository(db),
		settings: repository.NewSettingsRepository(db),
		cache:    competitionCache,
		mailer:   mailer,
		logger:   logger.Named("AdminService"),
	}
}

// ListUsers returns a page of users filtered by role and search text
func (s *AdminService) ListUsers(ctx context.Context, filter models.UserFilter) (*UserPage, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, invalidInput("role", "unknown role")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}

	users, total, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// UpdateUser applies an admin edit and returns the updated user
func (s *AdminService) UpdateUser(ctx context.Context, adminID, userID int64, upd models.UserUpdate) (*models.User, error) {
	if upd.Name != nil {
		if err := validation.ValidateName(*upd.Name); err != nil {
			return nil, err
		}
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, invalidInput("role", "role must be child, mentor or admin")
	}
	if upd.SubscriptionTier != nil && !upd.SubscriptionTier.Valid() {
		return nil, invalidInput("subscriptionTier", "subscriptionTier must be free or premium")
	}
	if upd.SubscriptionStatus != nil && !upd.SubscriptionStatus.Valid() {
		return nil, invalidInput("subscriptionStatus", "subscriptionStatus must be active, canceled or past_due")
	}
	if adminID == userID && upd.IsActive != nil && !*upd.IsActive {
		return nil, invalidInput("isActive", "you cannot disable your own account")
	}

	existing, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}

	if err := s.users.UpdateUser(ctx, userID, upd); err != nil {
		return nil, err
	}
	s.logger.Info("User updated", zap.Int64("adminID", adminID), zap.Int64("userID", userID))
	return s.users.GetUserByID(ctx, userID)
}

// DeleteUser removes a user and everything they wrote
func (s *AdminService) DeleteUser(ctx context.Context, adminID, userID int64) error {
	if adminID == userID {
		return ErrCannotDeleteSelf
	}
	existing, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrUserNotFound
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	// the user's submissions went with them
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Competition cache invalidation failed", zap.Error(err))
	}
	s.logger.Info("User deleted", zap.Int64("adminID", adminID), zap.Int64("userID", userID))
	return nil
}

// GetSettings returns the site settings document
func (s *AdminService) GetSettings(ctx context.Context) (models.SiteSettings, error) {
	return s.settings.GetSiteSettings(ctx)
}

// UpdateSettings validates and stores the site settings document
func (s *AdminService) UpdateSettings(ctx context.Context, settings models.SiteSettings) (models.SiteSettings, error) {
	if err := settings.Validate(); err != nil {
		return models.SiteSettings{}, err
	}
	if err := s.settings.SaveSiteSettings(ctx, settings); err != nil {
		return models.SiteSettings{}, err
	}
	s.logger.Info("Site settings updated")
	return settings, nil
}

// ResetMonthlyQuotas zeroes every user's monthly story count and emails
// the users who opted in
func (s *AdminService) ResetMonthlyQuotas(ctx context.Context) (*QuotaResetResult, error) {
	settings, err := s.settings.GetSiteSettings(ctx)
	if err != nil {
		return nil, err
	}

	reset, err := s.users.ResetMonthlyStoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	result := &QuotaResetResult{UsersReset: reset}

	recipients, err := s.users.ListQuotaResetRecipients(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recipients {
		user := &recipients[i]
		if err := s.mailer.SendQuotaReset(ctx, user, settings.StoryQuota(user.SubscriptionTier)); err != nil {
			s.logger.Warn("Failed to send quota reset email", zap.Int64("userID", user.ID), zap.Error(err))
			continue
		}
		result.EmailsSent++
	}

	s.logger.Info("Monthly quotas reset", zap.Int64("users", reset), zap.Int("emails", result.EmailsSent))
	return result, nil
}
