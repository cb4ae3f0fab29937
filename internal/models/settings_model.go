package models

import "time"

type Settings struct {
	UserID                string     `db:"user_id" json:"user_id"`
	AutoApprovalEnabled   bool       `db:"auto_approval_enabled" json:"auto_approval_enabled"`
	AutoApprovalPlatforms []Platform `db:"auto_approval_platforms" json:"auto_approval_platforms"`
	Timezone              string     `db:"timezone" json:"timezone"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

func (s *Settings) AllowsPlatform(p Platform) bool {
	if s == nil {
		return false
	}
	for _, allowed := range s.AutoApprovalPlatforms {
		if allowed == p {
			return true
		}
	}
	return false
}
