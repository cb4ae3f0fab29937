// Package policy holds the auto-approval rule applied to freshly generated drafts.
package policy

import (
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
)

type AutoAction string

const (
	AutoNone               AutoAction = "none"
	AutoApprove            AutoAction = "approve"
	AutoApproveAndSchedule AutoAction = "approve_and_schedule"
)

// Decide is evaluated once per draft, at creation. A nil settings value means
// the user never configured auto-approval.
func Decide(post *models.Post, settings *models.Settings, now time.Time) AutoAction {
	if post == nil || post.Status != models.PostStatusDraft {
		return AutoNone
	}
	if settings == nil || !settings.AutoApprovalEnabled {
		return AutoNone
	}
	if !settings.AllowsPlatform(post.Platform) {
		return AutoNone
	}
	if post.SuggestedTime != nil && post.SuggestedTime.After(now) {
		return AutoApproveAndSchedule
	}
	return AutoApprove
}
