package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	PostStatusDraft     Status = "draft"
	PostStatusApproved  Status = "approved"
	PostStatusRejected  Status = "rejected"
	PostStatusScheduled Status = "scheduled"
	PostStatusPosted    Status = "posted"
	PostStatusFailed    Status = "failed"

	// PostStatusPublishing marks a post claimed by exactly one publisher.
	// It is never requested directly through the API.
	PostStatusPublishing Status = "publishing"
)

// Public reports whether s is a status callers may see or filter by.
func (s Status) Public() bool {
	return s.Valid() && s != PostStatusPublishing
}

func (s Status) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusApproved, PostStatusRejected, PostStatusScheduled,
		PostStatusPosted, PostStatusFailed, PostStatusPublishing:
		return true
	}
	return false
}

type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTiktok    Platform = "tiktok"
)

var Platforms = []Platform{
	PlatformLinkedIn,
	PlatformTwitter,
	PlatformInstagram,
	PlatformFacebook,
	PlatformTiktok,
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

type Post struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	Platform       Platform   `db:"platform" json:"platform"`
	ContentText    string     `db:"content_text" json:"content_text"`
	MediaURL       *string    `db:"media_url" json:"media_url"`
	Tags           []string   `db:"tags" json:"tags"`
	ContentPillar  string     `db:"content_pillar" json:"content_pillar"`
	Status         Status     `db:"status" json:"status"`
	SuggestedTime  *time.Time `db:"suggested_time" json:"suggested_time"`
	ScheduledTime  *time.Time `db:"scheduled_time" json:"scheduled_time"`
	PostedAt       *time.Time `db:"posted_at" json:"posted_at"`
	PlatformPostID *string    `db:"platform_post_id" json:"platform_post_id"`
	AttemptCount   int        `db:"attempt_count" json:"attempt_count"`
	LastError      string     `db:"last_error" json:"last_error"`
	ClaimedFrom    *Status    `db:"claimed_from" json:"-"`
	ClaimedAt      *time.Time `db:"claimed_at" json:"-"`
	// ClaimedPostID holds the provider id of a publication that succeeded
	// while its posted result could not be stored yet.
	ClaimedPostID *string   `db:"claimed_post_id" json:"-"`
	Version       int64     `db:"version" json:"version"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Clone returns a deep copy so transitions never alias the caller's post.
func (p *Post) Clone() *Post {
	c := *p
	c.MediaURL = cloneString(p.MediaURL)
	c.PlatformPostID = cloneString(p.PlatformPostID)
	c.SuggestedTime = cloneTime(p.SuggestedTime)
	c.ScheduledTime = cloneTime(p.ScheduledTime)
	c.PostedAt = cloneTime(p.PostedAt)
	c.ClaimedAt = cloneTime(p.ClaimedAt)
	c.ClaimedPostID = cloneString(p.ClaimedPostID)
	if p.ClaimedFrom != nil {
		s := *p.ClaimedFrom
		c.ClaimedFrom = &s
	}
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	return &c
}

func (p *Post) HasMedia() bool {
	return p.MediaURL != nil && strings.TrimSpace(*p.MediaURL) != ""
}

// CheckInvariants reports the first lifecycle invariant the post violates.
func (p *Post) CheckInvariants() error {
	if (p.ScheduledTime != nil) != (p.Status == PostStatusScheduled) {
		return fmt.Errorf("post %s: scheduled_time set=%t with status %s", p.ID, p.ScheduledTime != nil, p.Status)
	}
	posted := p.Status == PostStatusPosted
	if (p.PostedAt != nil) != posted || (p.PlatformPostID != nil) != posted {
		return fmt.Errorf("post %s: posted_at/platform_post_id inconsistent with status %s", p.ID, p.Status)
	}
	publishing := p.Status == PostStatusPublishing
	if (p.ClaimedFrom != nil) != publishing || (p.ClaimedAt != nil) != publishing {
		return fmt.Errorf("post %s: claim marker inconsistent with status %s", p.ID, p.Status)
	}
	if p.ClaimedPostID != nil && !publishing {
		return fmt.Errorf("post %s: pending provider id outside a claim", p.ID)
	}
	if posted && p.Platform == PlatformInstagram && !p.HasMedia() {
		return fmt.Errorf("post %s: instagram post published without media", p.ID)
	}
	if p.AttemptCount < 0 {
		return fmt.Errorf("post %s: negative attempt_count", p.ID)
	}
	return nil
}

// NormalizeTags trims, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type PostFilter struct {
	Status   Status
	Platform Platform
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
