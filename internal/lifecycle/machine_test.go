package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newPost(status models.Status) *models.Post {
	p := &models.Post{
		ID:          "p1",
		UserID:      "u1",
		Platform:    models.PlatformLinkedIn,
		ContentText: "hello",
		Status:      status,
	}
	switch status {
	case models.PostStatusScheduled:
		at := now.Add(time.Hour)
		p.ScheduledTime = &at
	case models.PostStatusPosted:
		at := now
		id := "li-1"
		p.PostedAt = &at
		p.PlatformPostID = &id
	case models.PostStatusPublishing:
		from := models.PostStatusScheduled
		at := now
		p.ClaimedFrom = &from
		p.ClaimedAt = &at
	}
	return p
}

func machine() *Machine {
	return NewMachine(validation.NewEngine(nil))
}

func TestApply_LegalTransitionTable(t *testing.T) {
	m := machine()
	cases := []struct {
		from   models.Status
		action Action
		ctx    Context
		to     models.Status
	}{
		{models.PostStatusDraft, ActionApprove, Context{}, models.PostStatusApproved},
		{models.PostStatusDraft, ActionReject, Context{}, models.PostStatusRejected},
		{models.PostStatusRejected, ActionReconsider, Context{}, models.PostStatusDraft},
		{models.PostStatusDraft, ActionSchedule, Context{ScheduledTime: now.Add(time.Minute)}, models.PostStatusScheduled},
		{models.PostStatusApproved, ActionSchedule, Context{ScheduledTime: now.Add(time.Minute)}, models.PostStatusScheduled},
		{models.PostStatusScheduled, ActionCancelSchedule, Context{}, models.PostStatusApproved},
		{models.PostStatusApproved, ActionClaim, Context{}, models.PostStatusPublishing},
		{models.PostStatusScheduled, ActionClaim, Context{}, models.PostStatusPublishing},
		{models.PostStatusApproved, ActionPublish, Context{PlatformPostID: "x"}, models.PostStatusPosted},
		{models.PostStatusScheduled, ActionPublish, Context{PlatformPostID: "x"}, models.PostStatusPosted},
		{models.PostStatusPublishing, ActionPublish, Context{PlatformPostID: "x"}, models.PostStatusPosted},
		{models.PostStatusApproved, ActionFail, Context{Reason: "boom"}, models.PostStatusFailed},
		{models.PostStatusScheduled, ActionFail, Context{Reason: "boom"}, models.PostStatusFailed},
		{models.PostStatusPublishing, ActionFail, Context{Reason: "boom"}, models.PostStatusFailed},
		{models.PostStatusPublishing, ActionRetry, Context{ScheduledTime: now.Add(time.Minute)}, models.PostStatusScheduled},
		{models.PostStatusFailed, ActionReset, Context{}, models.PostStatusApproved},
	}

	for _, c := range cases {
		c.ctx.Now = now
		next, err := m.Apply(newPost(c.from), c.action, c.ctx)
		require.NoError(t, err, "%s from %s", c.action, c.from)
		assert.Equal(t, c.to, next.Status, "%s from %s", c.action, c.from)
		assert.NoError(t, next.CheckInvariants(), "%s from %s", c.action, c.from)
		assert.Equal(t, now, next.UpdatedAt)
	}
}

func TestApply_IllegalTransitionsCarryCurrentStatusAndAction(t *testing.T) {
	m := machine()
	all := []models.Status{
		models.PostStatusDraft, models.PostStatusApproved, models.PostStatusRejected,
		models.PostStatusScheduled, models.PostStatusPosted, models.PostStatusFailed,
		models.PostStatusPublishing,
	}
	actions := []Action{
		ActionApprove, ActionReject, ActionReconsider, ActionSchedule, ActionCancelSchedule,
		ActionClaim, ActionPublish, ActionFail, ActionRetry, ActionReset, ActionEdit,
	}

	for _, from := range all {
		for _, action := range actions {
			if m.Can(from, action) {
				continue
			}
			_, err := m.Apply(newPost(from), action, Context{Now: now, ScheduledTime: now.Add(time.Hour), PlatformPostID: "x"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTransition)

			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, from, te.From)
			assert.Equal(t, action, te.Action)
			assert.Equal(t, m.Target(from, action), te.To)
		}
	}
}

func TestApply_TransitionErrorNamesRequestedStatus(t *testing.T) {
	m := machine()

	_, err := m.Apply(newPost(models.PostStatusPosted), ActionApprove, Context{Now: now})
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.PostStatusPosted, te.From)
	assert.Equal(t, models.PostStatusApproved, te.To)
	assert.Contains(t, te.Error(), "posted -> approved")

	_, err = m.Apply(newPost(models.PostStatusPosted), ActionEdit, Context{Now: now})
	require.True(t, errors.As(err, &te))
	assert.Equal(t, models.PostStatusPosted, te.To)
}

func TestApply_LeavingPublishingDropsPendingProviderID(t *testing.T) {
	m := machine()
	p := newPost(models.PostStatusScheduled)
	claimed, err := m.Apply(p, ActionClaim, Context{Now: now})
	require.NoError(t, err)
	id := "li-1"
	claimed.ClaimedPostID = &id
	require.NoError(t, claimed.CheckInvariants())

	posted, err := m.Apply(claimed, ActionPublish, Context{Now: now, PlatformPostID: id})
	require.NoError(t, err)
	assert.Nil(t, posted.ClaimedPostID)
	assert.NoError(t, posted.CheckInvariants())
	assert.Equal(t, id, *posted.PlatformPostID)
}

func TestApply_NothingLeavesPosted(t *testing.T) {
	m := machine()
	for _, action := range []Action{ActionApprove, ActionSchedule, ActionClaim, ActionPublish, ActionFail, ActionReset, ActionEdit} {
		assert.False(t, m.Can(models.PostStatusPosted, action), "action %s", action)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	m := machine()
	post := newPost(models.PostStatusScheduled)
	before := *post.ScheduledTime

	next, err := m.Apply(post, ActionCancelSchedule, Context{Now: now})
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusScheduled, post.Status)
	require.NotNil(t, post.ScheduledTime)
	assert.Equal(t, before, *post.ScheduledTime)
	assert.Nil(t, next.ScheduledTime)
}

func TestApply_ScheduleRequiresStrictlyFutureTime(t *testing.T) {
	m := machine()

	for _, at := range []time.Time{now, now.Add(-time.Second), {}} {
		_, err := m.Apply(newPost(models.PostStatusApproved), ActionSchedule, Context{Now: now, ScheduledTime: at})
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	}

	next, err := m.Apply(newPost(models.PostStatusApproved), ActionSchedule, Context{Now: now, ScheduledTime: now.Add(time.Nanosecond)})
	require.NoError(t, err)
	assert.True(t, next.ScheduledTime.After(now))
}

func TestApply_PublishRunsValidationAndLeavesStatusOnFailure(t *testing.T) {
	m := machine()
	post := newPost(models.PostStatusPublishing)
	post.Platform = models.PlatformInstagram

	next, err := m.Apply(post, ActionPublish, Context{Now: now, PlatformPostID: "ig-1"})
	assert.Nil(t, next)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	var pe *PreconditionError
	require.True(t, errors.As(err, &pe))
	require.Len(t, pe.Issues, 1)
	assert.Equal(t, "media_url", pe.Issues[0].Field)
	assert.Equal(t, models.PostStatusPublishing, post.Status)
}

func TestApply_PublishRecordsProviderIDAndClearsClaim(t *testing.T) {
	m := machine()
	post := newPost(models.PostStatusPublishing)
	post.AttemptCount = 2
	post.LastError = "timeout"

	next, err := m.Apply(post, ActionPublish, Context{Now: now, PlatformPostID: "li-9"})
	require.NoError(t, err)

	require.NotNil(t, next.PlatformPostID)
	assert.Equal(t, "li-9", *next.PlatformPostID)
	require.NotNil(t, next.PostedAt)
	assert.Equal(t, now, *next.PostedAt)
	assert.Equal(t, 3, next.AttemptCount)
	assert.Empty(t, next.LastError)
	assert.Nil(t, next.ClaimedFrom)
	assert.Nil(t, next.ClaimedAt)

	_, err = m.Apply(post, ActionPublish, Context{Now: now})
	assert.Error(t, err)
}

func TestApply_AttemptCountRules(t *testing.T) {
	m := machine()

	claimed := newPost(models.PostStatusPublishing)
	claimed.AttemptCount = 1

	retried, err := m.Apply(claimed, ActionRetry, Context{Now: now, ScheduledTime: now.Add(time.Minute), Reason: "rate limited"})
	require.NoError(t, err)
	assert.Equal(t, 2, retried.AttemptCount)
	assert.Equal(t, "rate limited", retried.LastError)

	failed, err := m.Apply(claimed, ActionFail, Context{Now: now, Reason: "bad", Attempted: true})
	require.NoError(t, err)
	assert.Equal(t, 2, failed.AttemptCount)

	precondition, err := m.Apply(claimed, ActionFail, Context{Now: now, Reason: "precondition failed"})
	require.NoError(t, err)
	assert.Equal(t, 1, precondition.AttemptCount)

	reset, err := m.Apply(failed, ActionReset, Context{Now: now})
	require.NoError(t, err)
	assert.Zero(t, reset.AttemptCount)
	assert.Empty(t, reset.LastError)

	scheduled := newPost(models.PostStatusScheduled)
	scheduled.AttemptCount = 3
	cancelled, err := m.Apply(scheduled, ActionCancelSchedule, Context{Now: now})
	require.NoError(t, err)
	assert.Zero(t, cancelled.AttemptCount)
}

func TestApply_RetryNeedsFutureTime(t *testing.T) {
	_, err := machine().Apply(newPost(models.PostStatusPublishing), ActionRetry, Context{Now: now, ScheduledTime: now})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestApply_ClaimRecordsOrigin(t *testing.T) {
	next, err := machine().Apply(newPost(models.PostStatusScheduled), ActionClaim, Context{Now: now})
	require.NoError(t, err)

	require.NotNil(t, next.ClaimedFrom)
	assert.Equal(t, models.PostStatusScheduled, *next.ClaimedFrom)
	require.NotNil(t, next.ClaimedAt)
	assert.Nil(t, next.ScheduledTime)
}

func TestApply_EditKeepsStatusAndNormalizesTags(t *testing.T) {
	m := machine()
	text := "new text"
	tags := []string{"go", " b ", "go", ""}
	media := "  "

	post := newPost(models.PostStatusScheduled)
	url := "https://cdn.example.com/a.png"
	post.MediaURL = &url

	next, err := m.Apply(post, ActionEdit, Context{Now: now, Edit: &Edit{ContentText: &text, Tags: &tags, MediaURL: &media}})
	require.NoError(t, err)

	assert.Equal(t, models.PostStatusScheduled, next.Status)
	assert.NotNil(t, next.ScheduledTime)
	assert.Equal(t, "new text", next.ContentText)
	assert.Equal(t, []string{"b", "go"}, next.Tags)
	assert.Nil(t, next.MediaURL)
}

func TestNewEvent(t *testing.T) {
	prev := newPost(models.PostStatusDraft)
	next, err := machine().Apply(prev, ActionApprove, Context{Now: now})
	require.NoError(t, err)

	ev := NewEvent(prev, next, ActionApprove, "manual")
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "p1", ev.PostID)
	assert.Equal(t, models.PostStatusDraft, ev.FromStatus)
	assert.Equal(t, models.PostStatusApproved, ev.ToStatus)
	assert.Equal(t, "approve", ev.Action)
	assert.Equal(t, now, ev.CreatedAt)
}
