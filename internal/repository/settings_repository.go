package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
)

type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Settings, bool, error)
	Upsert(ctx context.Context, s *models.Settings) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetByUserID(ctx context.Context, userID string) (*models.Settings, bool, error) {
	query := `
		SELECT user_id, auto_approval_enabled, auto_approval_platforms, timezone, created_at, updated_at
		FROM settings WHERE user_id = $1
	`
	row := r.db.QueryRowContext(ctx, query, userID)

	var settings models.Settings
	var platforms string
	err := row.Scan(&settings.UserID, &settings.AutoApprovalEnabled, &platforms, &settings.Timezone, &settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}

	if err := json.Unmarshal([]byte(platforms), &settings.AutoApprovalPlatforms); err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}
	settings.CreatedAt = settings.CreatedAt.UTC()
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, true, nil
}

func (r *settingsRepository) Upsert(ctx context.Context, s *models.Settings) error {
	query := `
		INSERT INTO settings (user_id, auto_approval_enabled, auto_approval_platforms, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET auto_approval_enabled = excluded.auto_approval_enabled,
			auto_approval_platforms = excluded.auto_approval_platforms,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at
	`

	if s.AutoApprovalPlatforms == nil {
		s.AutoApprovalPlatforms = []models.Platform{}
	}
	platforms, err := json.Marshal(s.AutoApprovalPlatforms)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, query, s.UserID, s.AutoApprovalEnabled, string(platforms), s.Timezone, s.CreatedAt.UTC(), s.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
