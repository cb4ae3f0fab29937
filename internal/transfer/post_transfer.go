package transfer

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var platformNames = []interface{}{"linkedin", "twitter", "instagram", "facebook", "tiktok"}

// Draft is one generated post handed over by the content generator.
// Lifecycle fields are accepted only so their presence can be rejected.
type Draft struct {
	Platform       string     `json:"platform"`
	ContentText    string     `json:"content_text"`
	MediaURL       string     `json:"media_url"`
	Tags           []string   `json:"tags"`
	ContentPillar  string     `json:"content_pillar"`
	SuggestedTime  *time.Time `json:"suggested_time"`
	ScheduledTime  *time.Time `json:"scheduled_time,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	PlatformPostID *string    `json:"platform_post_id,omitempty"`
	Status         string     `json:"status,omitempty"`
}

func (d Draft) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Platform, validation.Required, validation.In(platformNames...)),
		validation.Field(&d.ContentText, validation.Required),
		validation.Field(&d.MediaURL, is.URL),
		validation.Field(&d.ScheduledTime, validation.Nil.Error("must not be set by the generator")),
		validation.Field(&d.PostedAt, validation.Nil.Error("must not be set by the generator")),
		validation.Field(&d.PlatformPostID, validation.Nil.Error("must not be set by the generator")),
		validation.Field(&d.Status, validation.In("", "draft").Error("drafts are always created as draft")),
	)
}

type DraftBatch struct {
	Drafts []Draft `json:"drafts"`
}

func (b DraftBatch) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Drafts, validation.Required, validation.Length(1, 100)),
	)
}

type ScheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
}

func (r ScheduleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ScheduledTime, validation.Required),
	)
}

type PostUpdate struct {
	ContentText   *string   `json:"content_text"`
	Tags          *[]string `json:"tags"`
	ContentPillar *string   `json:"content_pillar"`
	MediaURL      *string   `json:"media_url"`
}

func (u PostUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ContentText, validation.NilOrNotEmpty),
		validation.Field(&u.MediaURL, is.URL),
	)
}

type BulkRequest struct {
	IDs []string `json:"ids"`
}

func (r BulkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Length(1, 200), validation.Each(validation.Required)),
	)
}
