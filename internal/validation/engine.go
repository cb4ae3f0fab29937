// Package validation checks platform-specific publish preconditions.
//
// The engine is pure: it never mutates the post and holds no state beyond
// its rule table, so it can be shared between goroutines.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/maheshrc27/contentflow/internal/models"
)

type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Field, i.Message)
}

// Limits maps a platform to its maximum content length in characters.
type Limits map[models.Platform]int

func DefaultLimits() Limits {
	return Limits{
		models.PlatformTwitter:   280,
		models.PlatformInstagram: 2200,
		models.PlatformLinkedIn:  3000,
		models.PlatformFacebook:  63206,
		models.PlatformTiktok:    2200,
	}
}

// rule adds platform-specific field rules on top of the shared ones.
type rule func(s *subject) []*validation.FieldRules

type Engine struct {
	limits Limits
	rules  map[models.Platform][]rule
}

func NewEngine(limits Limits) *Engine {
	merged := DefaultLimits()
	for p, l := range limits {
		if l > 0 {
			merged[p] = l
		}
	}
	return &Engine{
		limits: merged,
		rules: map[models.Platform][]rule{
			models.PlatformInstagram: {requireMedia("instagram posts require an image or video")},
		},
	}
}

// Limit returns the configured maximum length for p, or 0 when unknown.
func (e *Engine) Limit(p models.Platform) int {
	return e.limits[p]
}

// subject is the validated view of a post; json tags name the issue fields.
type subject struct {
	Platform    string `json:"platform"`
	ContentText string `json:"content_text"`
	MediaURL    string `json:"media_url"`
}

func (e *Engine) Validate(post *models.Post) []Issue {
	if post == nil {
		return []Issue{{Field: "post", Code: "validation_required", Message: "cannot be blank"}}
	}

	s := &subject{
		Platform:    string(post.Platform),
		ContentText: post.ContentText,
	}
	if post.MediaURL != nil {
		s.MediaURL = strings.TrimSpace(*post.MediaURL)
	}

	known := make([]interface{}, 0, len(models.Platforms))
	for _, p := range models.Platforms {
		known = append(known, string(p))
	}

	contentRules := []validation.Rule{validation.By(notBlank)}
	if limit, ok := e.limits[post.Platform]; ok {
		contentRules = append(contentRules, validation.RuneLength(0, limit).
			Error(fmt.Sprintf("exceeds the %s limit of %d characters", post.Platform, limit)))
	}

	fields := []*validation.FieldRules{
		validation.Field(&s.Platform, validation.Required, validation.In(known...)),
		validation.Field(&s.ContentText, contentRules...),
		validation.Field(&s.MediaURL, is.URL),
	}
	for _, r := range e.rules[post.Platform] {
		fields = append(fields, r(s)...)
	}

	return toIssues(validation.ValidateStruct(s, fields...))
}

func requireMedia(message string) rule {
	return func(s *subject) []*validation.FieldRules {
		return []*validation.FieldRules{
			validation.Field(&s.MediaURL, validation.Required.Error(message)),
		}
	}
}

func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}

func toIssues(err error) []Issue {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return []Issue{{Field: "post", Code: "validation_internal", Message: err.Error()}}
	}

	issues := make([]Issue, 0, len(fieldErrs))
	for field, fe := range fieldErrs {
		issue := Issue{Field: field, Code: "validation_invalid", Message: fe.Error()}
		var coded validation.Error
		if errors.As(fe, &coded) {
			issue.Code = coded.Code()
		}
		issues = append(issues, issue)
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Field != issues[j].Field {
			return issues[i].Field < issues[j].Field
		}
		return issues[i].Code < issues[j].Code
	})
	return issues
}

// Summary joins issues into one human-readable line.
func Summary(issues []Issue) string {
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, "; ")
}
