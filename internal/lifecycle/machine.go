// Package lifecycle owns the post state machine. Every mutating path (queue
// operations, auto-approval, claims and dispatch outcomes) computes the next
// post through Machine.Apply so the lifecycle invariants are enforced once.
package lifecycle

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/validation"
)

type Action string

const (
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionReconsider     Action = "reconsider"
	ActionSchedule       Action = "schedule"
	ActionCancelSchedule Action = "cancel_schedule"
	ActionClaim          Action = "claim"
	ActionPublish        Action = "publish"
	ActionFail           Action = "fail"
	ActionRetry          Action = "retry"
	ActionReset          Action = "reset"
	ActionEdit           Action = "edit"
)

// ActionCreate names the history event written when a post is ingested.
// It is not a transition and cannot be applied.
const ActionCreate = "create"

// Edit lists the descriptive fields to replace; nil fields are left alone.
type Edit struct {
	ContentText   *string
	Tags          *[]string
	ContentPillar *string
	MediaURL      *string
}

// Context carries the inputs an action needs.
type Context struct {
	Now            time.Time
	ScheduledTime  time.Time
	PlatformPostID string
	Reason         string
	// Attempted marks a failure that followed a real gateway call.
	Attempted bool
	Edit      *Edit
}

type Validator interface {
	Validate(post *models.Post) []validation.Issue
}

type transition struct {
	from  []models.Status
	to    models.Status
	apply func(m *Machine, next *models.Post, c Context) error
}

type Machine struct {
	validator Validator
	table     map[Action]transition
}

func NewMachine(validator Validator) *Machine {
	pre := []models.Status{models.PostStatusApproved, models.PostStatusScheduled, models.PostStatusPublishing}

	return &Machine{
		validator: validator,
		table: map[Action]transition{
			ActionApprove: {
				from: []models.Status{models.PostStatusDraft},
				to:   models.PostStatusApproved,
			},
			ActionReject: {
				from: []models.Status{models.PostStatusDraft},
				to:   models.PostStatusRejected,
			},
			ActionReconsider: {
				from:  []models.Status{models.PostStatusRejected},
				to:    models.PostStatusDraft,
				apply: resetAttempts,
			},
			ActionSchedule: {
				from:  []models.Status{models.PostStatusDraft, models.PostStatusApproved},
				to:    models.PostStatusScheduled,
				apply: schedule,
			},
			ActionCancelSchedule: {
				from:  []models.Status{models.PostStatusScheduled},
				to:    models.PostStatusApproved,
				apply: resetAttempts,
			},
			ActionClaim: {
				from:  []models.Status{models.PostStatusApproved, models.PostStatusScheduled},
				to:    models.PostStatusPublishing,
				apply: claim,
			},
			ActionPublish: {
				from:  pre,
				to:    models.PostStatusPosted,
				apply: publish,
			},
			ActionFail: {
				from:  pre,
				to:    models.PostStatusFailed,
				apply: fail,
			},
			ActionRetry: {
				from:  []models.Status{models.PostStatusPublishing},
				to:    models.PostStatusScheduled,
				apply: retry,
			},
			ActionReset: {
				from:  []models.Status{models.PostStatusFailed},
				to:    models.PostStatusApproved,
				apply: resetAttempts,
			},
			ActionEdit: {
				from: []models.Status{
					models.PostStatusDraft,
					models.PostStatusRejected,
					models.PostStatusApproved,
					models.PostStatusScheduled,
					models.PostStatusFailed,
				},
				apply: edit,
			},
		},
	}
}

// Can reports whether action is legal from status.
func (m *Machine) Can(status models.Status, action Action) bool {
	t, ok := m.table[action]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}

// Target returns the status action leads to when applied from status.
// Actions that keep the status, and unknown actions, return status itself.
func (m *Machine) Target(status models.Status, action Action) models.Status {
	if t, ok := m.table[action]; ok && t.to != "" {
		return t.to
	}
	return status
}

// Apply returns the post that results from performing action on post.
// The input is never modified; on error the caller's post is unchanged.
func (m *Machine) Apply(post *models.Post, action Action, c Context) (*models.Post, error) {
	if post == nil {
		return nil, ErrNotFound
	}
	if !m.Can(post.Status, action) {
		return nil, &TransitionError{From: post.Status, To: m.Target(post.Status, action), Action: action}
	}
	if c.Now.IsZero() {
		c.Now = time.Now()
	}
	c.Now = c.Now.UTC()

	t := m.table[action]
	next := post.Clone()
	if t.apply != nil {
		if err := t.apply(m, next, c); err != nil {
			return nil, err
		}
	}

	if t.to != "" {
		if post.Status == models.PostStatusPublishing && t.to != models.PostStatusPublishing {
			next.ClaimedFrom = nil
			next.ClaimedAt = nil
			next.ClaimedPostID = nil
		}
		if t.to != models.PostStatusScheduled {
			next.ScheduledTime = nil
		}
		next.Status = t.to
	}
	next.UpdatedAt = c.Now
	return next, nil
}

func resetAttempts(_ *Machine, next *models.Post, _ Context) error {
	next.AttemptCount = 0
	next.LastError = ""
	return nil
}

func schedule(_ *Machine, next *models.Post, c Context) error {
	if !c.ScheduledTime.After(c.Now) {
		return ErrInvalidSchedule
	}
	at := c.ScheduledTime.UTC()
	next.ScheduledTime = &at
	return nil
}

func claim(_ *Machine, next *models.Post, c Context) error {
	from := next.Status
	at := c.Now
	next.ClaimedFrom = &from
	next.ClaimedAt = &at
	return nil
}

func publish(m *Machine, next *models.Post, c Context) error {
	if m.validator != nil {
		if issues := m.validator.Validate(next); len(issues) > 0 {
			return &PreconditionError{Issues: issues}
		}
	}
	if strings.TrimSpace(c.PlatformPostID) == "" {
		return errors.New("publish: platform post id is required")
	}
	id := c.PlatformPostID
	at := c.Now
	next.PlatformPostID = &id
	next.PostedAt = &at
	next.AttemptCount++
	next.LastError = ""
	return nil
}

func fail(_ *Machine, next *models.Post, c Context) error {
	if c.Attempted {
		next.AttemptCount++
	}
	next.LastError = c.Reason
	return nil
}

func retry(_ *Machine, next *models.Post, c Context) error {
	if !c.ScheduledTime.After(c.Now) {
		return ErrInvalidSchedule
	}
	at := c.ScheduledTime.UTC()
	next.ScheduledTime = &at
	next.AttemptCount++
	next.LastError = c.Reason
	return nil
}

func edit(_ *Machine, next *models.Post, c Context) error {
	if c.Edit == nil {
		return nil
	}
	if c.Edit.ContentText != nil {
		next.ContentText = *c.Edit.ContentText
	}
	if c.Edit.Tags != nil {
		next.Tags = models.NormalizeTags(*c.Edit.Tags)
	}
	if c.Edit.ContentPillar != nil {
		next.ContentPillar = *c.Edit.ContentPillar
	}
	if c.Edit.MediaURL != nil {
		if url := strings.TrimSpace(*c.Edit.MediaURL); url != "" {
			next.MediaURL = &url
		} else {
			next.MediaURL = nil
		}
	}
	return nil
}

// NewCreatedEvent records the arrival of a new post in the queue.
func NewCreatedEvent(post *models.Post, note string) *models.PostEvent {
	return &models.PostEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		PostID:    post.ID,
		Action:    ActionCreate,
		ToStatus:  post.Status,
		Note:      note,
		CreatedAt: post.CreatedAt,
	}
}

// NewEvent builds the history row recording the step from prev to next.
// Event ids are time-ordered so events sharing a timestamp keep their order.
func NewEvent(prev, next *models.Post, action Action, note string) *models.PostEvent {
	return &models.PostEvent{
		ID:         uuid.Must(uuid.NewV7()).String(),
		PostID:     next.ID,
		Action:     string(action),
		FromStatus: prev.Status,
		ToStatus:   next.Status,
		Attempt:    next.AttemptCount,
		Note:       note,
		CreatedAt:  next.UpdatedAt,
	}
}
