package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/service"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

// LengthLimits reports the maximum content length enforced per platform.
type LengthLimits interface {
	Limit(p models.Platform) int
}

type SettingsHandler struct {
	s      service.SettingsService
	limits LengthLimits
}

func NewSettingsHandler(service service.SettingsService, limits LengthLimits) *SettingsHandler {
	return &SettingsHandler{s: service, limits: limits}
}

type settingsInfo struct {
	*models.Settings
	ContentLimits map[models.Platform]int `json:"content_limits"`
}

// GetSettingsInfo returns the user's settings along with the content length
// limits drafts are checked against, so clients can warn before publishing.
func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	userId := GetUserID(c)

	settings, err := h.s.GetSettingsInfo(c.Context(), userId)
	if err != nil {
		return errorResponse(c, err, nil)
	}

	info := settingsInfo{Settings: settings, ContentLimits: map[models.Platform]int{}}
	if h.limits != nil {
		for _, p := range models.Platforms {
			if n := h.limits.Limit(p); n > 0 {
				info.ContentLimits[p] = n
			}
		}
	}
	return c.JSON(info)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	userId := GetUserID(c)

	var settings transfer.SettingsUpdate
	if err := parseBody(c, &settings); err != nil {
		return errorResponse(c, err, nil)
	}

	updated, err := h.s.UpdateSettings(c.Context(), userId, settings)
	if err != nil {
		return errorResponse(c, err, nil)
	}

	return c.JSON(updated)
}
