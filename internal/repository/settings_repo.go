package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mintoons/internal/database"
	"mintoons/internal/models"
)

// SiteSettingsKey is the settings row holding the admin settings document
const SiteSettingsKey = "site"

type SettingsRepository struct {
	db database.DBTX
}

func NewSettingsRepository(db database.DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSetting retrieves a setting value by key. found is false when unset.
func (r *SettingsRepository) GetSetting(ctx context.Context, key string) (value string, found bool, err error) {
	query := "SELECT setting_value FROM settings WHERE setting_key = ?"
	err = r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting updates or inserts a setting
func (r *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, r.db.GetDialect().UpsertSettingQuery(), key, value); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

// GetSiteSettings returns the stored settings document layered over the
// defaults, so fields added later keep their default until saved
func (r *SettingsRepository) GetSiteSettings(ctx context.Context) (models.SiteSettings, error) {
	settings := models.DefaultSiteSettings()

	value, found, err := r.GetSetting(ctx, SiteSettingsKey)
	if err != nil || !found {
		return settings, err
	}
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return models.DefaultSiteSettings(), fmt.Errorf("failed to decode site settings: %w", err)
	}
	return settings, nil
}

// SaveSiteSettings stores the settings document
func (r *SettingsRepository) SaveSiteSettings(ctx context.Context, settings models.SiteSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode site settings: %w", err)
	}
	return r.SetSetting(ctx, SiteSettingsKey, string(data))
}
