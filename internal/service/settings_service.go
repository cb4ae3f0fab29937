package service

import (
	"context"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

type SettingsService interface {
	GetSettingsInfo(ctx context.Context, userID string) (*models.Settings, error)
	UpdateSettings(ctx context.Context, userID string, in transfer.SettingsUpdate) (*models.Settings, error)
}

type settingsService struct {
	sr repository.SettingsRepository
}

func NewSettingsService(sr repository.SettingsRepository) SettingsService {
	return &settingsService{
		sr: sr,
	}
}

// GetSettingsInfo returns the stored settings, or disabled defaults when
// the user never saved any.
func (s *settingsService) GetSettingsInfo(ctx context.Context, userID string) (*models.Settings, error) {
	settings, isExist, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !isExist {
		return &models.Settings{
			UserID:                userID,
			AutoApprovalPlatforms: []models.Platform{},
			Timezone:              "UTC",
		}, nil
	}

	return settings, nil
}

func (s *settingsService) UpdateSettings(ctx context.Context, userID string, in transfer.SettingsUpdate) (*models.Settings, error) {
	current, err := s.GetSettingsInfo(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[models.Platform]struct{}, len(in.AutoApprovalPlatforms))
	platforms := make([]models.Platform, 0, len(in.AutoApprovalPlatforms))
	for _, name := range in.AutoApprovalPlatforms {
		p, err := models.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		platforms = append(platforms, p)
	}

	current.AutoApprovalEnabled = in.AutoApprovalEnabled
	current.AutoApprovalPlatforms = platforms
	if in.Timezone != "" {
		current.Timezone = in.Timezone
	}

	if err := s.sr.Upsert(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}
