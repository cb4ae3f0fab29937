package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/contentflow/internal/dispatcher"
	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/policy"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/transfer"
)

const bulkConcurrency = 5

// BulkResult is the outcome for one id of a bulk request.
type BulkResult struct {
	ID      string       `json:"id"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Post    *models.Post `json:"post,omitempty"`
	Err     error        `json:"-"`
}

// QueueService is the operation surface over the post lifecycle. Every call
// acts on behalf of userID and only sees that user's posts.
type QueueService interface {
	IngestDrafts(ctx context.Context, userID string, drafts []transfer.Draft) ([]*models.Post, error)
	Get(ctx context.Context, userID, id string) (*models.Post, error)
	List(ctx context.Context, userID string, filter models.PostFilter) ([]*models.Post, error)
	History(ctx context.Context, userID, id string) ([]*models.PostEvent, error)
	Approve(ctx context.Context, userID, id string) (*models.Post, error)
	Reject(ctx context.Context, userID, id string) (*models.Post, error)
	Reconsider(ctx context.Context, userID, id string) (*models.Post, error)
	Schedule(ctx context.Context, userID, id string, at time.Time) (*models.Post, error)
	CancelSchedule(ctx context.Context, userID, id string) (*models.Post, error)
	Reset(ctx context.Context, userID, id string) (*models.Post, error)
	Edit(ctx context.Context, userID, id string, e lifecycle.Edit) (*models.Post, error)
	PostNow(ctx context.Context, userID, id string) (*models.Post, error)
	Remove(ctx context.Context, userID, id string) error
	BulkApprove(ctx context.Context, userID string, ids []string) []BulkResult
	BulkPost(ctx context.Context, userID string, ids []string) []BulkResult
}

type queueService struct {
	db       *sql.DB
	pr       repository.PostRepository
	er       repository.PostEventRepository
	sr       repository.SettingsRepository
	machine  *lifecycle.Machine
	d        *dispatcher.Dispatcher
	notifier dispatcher.Notifier
	now      func() time.Time
}

func NewQueueService(
	db *sql.DB,
	pr repository.PostRepository,
	er repository.PostEventRepository,
	sr repository.SettingsRepository,
	machine *lifecycle.Machine,
	d *dispatcher.Dispatcher,
	notifier dispatcher.Notifier) QueueService {
	return &queueService{
		db:       db,
		pr:       pr,
		er:       er,
		sr:       sr,
		machine:  machine,
		d:        d,
		notifier: notifier,
		now:      time.Now,
	}
}

// IngestDrafts stores a generated batch as drafts and then applies the
// user's auto-approval policy to each of them exactly once.
func (s *queueService) IngestDrafts(ctx context.Context, userID string, drafts []transfer.Draft) ([]*models.Post, error) {
	if userID == "" {
		return nil, lifecycle.ErrNotFound
	}

	settings, _, err := s.sr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	posts := make([]*models.Post, 0, len(drafts))
	for _, d := range drafts {
		platform, err := models.ParsePlatform(d.Platform)
		if err != nil {
			return nil, err
		}
		post := &models.Post{
			ID:            uuid.NewString(),
			UserID:        userID,
			Platform:      platform,
			ContentText:   d.ContentText,
			Tags:          models.NormalizeTags(d.Tags),
			ContentPillar: d.ContentPillar,
			Status:        models.PostStatusDraft,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if url := strings.TrimSpace(d.MediaURL); url != "" {
			post.MediaURL = &url
		}
		if d.SuggestedTime != nil {
			t := d.SuggestedTime.UTC()
			post.SuggestedTime = &t
		}
		posts = append(posts, post)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, post := range posts {
		if err := s.pr.Create(ctx, tx, post); err != nil {
			return nil, fmt.Errorf("error creating draft: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	for i, post := range posts {
		posts[i] = s.autoApprove(ctx, post, settings, now)
	}
	return posts, nil
}

func (s *queueService) autoApprove(ctx context.Context, post *models.Post, settings *models.Settings, now time.Time) *models.Post {
	decision := policy.Decide(post, settings, now)
	if decision == policy.AutoNone {
		return post
	}

	approved, err := s.apply(ctx, post, lifecycle.ActionApprove, lifecycle.Context{Now: now}, "auto-approval")
	if err != nil {
		slog.Info("auto-approval failed", "post_id", post.ID, "error", err)
		return post
	}
	if decision != policy.AutoApproveAndSchedule {
		return approved
	}

	scheduled, err := s.apply(ctx, approved, lifecycle.ActionSchedule,
		lifecycle.Context{Now: now, ScheduledTime: *post.SuggestedTime}, "auto-approval")
	if err != nil {
		slog.Info("auto-scheduling failed", "post_id", post.ID, "error", err)
		return approved
	}
	s.notify(ctx, scheduled)
	return scheduled
}

func (s *queueService) Get(ctx context.Context, userID, id string) (*models.Post, error) {
	return s.load(ctx, userID, id)
}

func (s *queueService) List(ctx context.Context, userID string, filter models.PostFilter) ([]*models.Post, error) {
	posts, err := s.pr.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *queueService) History(ctx context.Context, userID, id string) ([]*models.PostEvent, error) {
	if _, err := s.load(ctx, userID, id); err != nil {
		return nil, err
	}
	events, err := s.er.ListByPostID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading history: %w", err)
	}
	if events == nil {
		events = []*models.PostEvent{}
	}
	return events, nil
}

func (s *queueService) Approve(ctx context.Context, userID, id string) (*models.Post, error) {
	return s.transition(ctx, userID, id, lifecycle.ActionApprove, lifecycle.Context{})
}

func (s *queueService) Reject(ctx context.Context, userID, id string) (*models.Post, error) {
	return s.transition(ctx, userID, id, lifecycle.ActionReject, lifecycle.Context{})
}

func (s *queueService) Reconsider(ctx context.Context, userID, id string) (*models.Post, error) {
	return s.transition(ctx, userID, id, lifecycle.ActionReconsider, lifecycle.Context{})
}

func (s *queueService) Schedule(ctx context.Context, userID, id string, at time.Time) (*models.Post, error) {
	post, err := s.transition(ctx, userID, id, lifecycle.ActionSchedule, lifecycle.Context{ScheduledTime: at})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, post)
	return post, nil
}

func (s *queueService) CancelSchedule(ctx context.Context, userID, id string) (*models.Post, error) {
	return s.transition(ctx, userID, id, lifecycle.ActionCancelSchedule, lifecycle.Context{})
}

func (s *queueService) Reset(ctx context.Context, userID, id string) (*models.Post, error) {
	return s.transition(ctx, userID, id, lifecycle.ActionReset, lifecycle.Context{})
}

func (s *queueService) Edit(ctx context.Context, userID, id string, e lifecycle.Edit) (*models.Post, error) {
	return s.transition(ctx, userID, id, lifecycle.ActionEdit, lifecycle.Context{Edit: &e})
}

// PostNow publishes immediately through the dispatcher's publish path. A
// draft is approved first. The post is returned even when publishing failed.
func (s *queueService) PostNow(ctx context.Context, userID, id string) (*models.Post, error) {
	post, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	switch post.Status {
	case models.PostStatusDraft:
		post, err = s.apply(ctx, post, lifecycle.ActionApprove, lifecycle.Context{}, "post now")
		if err != nil {
			return nil, err
		}
	case models.PostStatusApproved, models.PostStatusScheduled:
	case models.PostStatusPublishing:
		return nil, lifecycle.ErrStateConflict
	default:
		return nil, &lifecycle.TransitionError{From: post.Status, To: models.PostStatusPosted, Action: lifecycle.ActionPublish}
	}

	return s.d.Fire(ctx, post, post.Status)
}

// Remove deletes a post outright. Posts being published cannot be removed.
func (s *queueService) Remove(ctx context.Context, userID, id string) error {
	post, err := s.load(ctx, userID, id)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPublishing {
		return lifecycle.ErrStateConflict
	}
	if err := s.pr.Remove(ctx, post.ID, post.Status, post.Version); err != nil {
		return err
	}
	slog.Info("post removed", "post_id", post.ID, "status", post.Status)
	return nil
}

func (s *queueService) BulkApprove(ctx context.Context, userID string, ids []string) []BulkResult {
	results := make([]BulkResult, len(ids))
	for i, id := range ids {
		post, err := s.Approve(ctx, userID, id)
		results[i] = bulkResult(id, post, err)
	}
	return results
}

// BulkPost publishes each id independently; one failure never affects the others.
func (s *queueService) BulkPost(ctx context.Context, userID string, ids []string) []BulkResult {
	results := make([]BulkResult, len(ids))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, bulkConcurrency)

	for i, id := range ids {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			defer func() {
				if r := recover(); r != nil {
					results[i] = bulkResult(id, nil, fmt.Errorf("post now panicked: %v", r))
				}
			}()

			post, err := s.PostNow(ctx, userID, id)
			results[i] = bulkResult(id, post, err)
		}(i, id)
	}

	wg.Wait()
	return results
}

func bulkResult(id string, post *models.Post, err error) BulkResult {
	r := BulkResult{ID: id, Success: err == nil, Post: post, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func (s *queueService) transition(ctx context.Context, userID, id string, action lifecycle.Action, c lifecycle.Context) (*models.Post, error) {
	post, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, post, action, c, "")
}

// apply runs action through the state machine and stores the result
// conditionally on the status and version that were read.
func (s *queueService) apply(ctx context.Context, post *models.Post, action lifecycle.Action, c lifecycle.Context, note string) (*models.Post, error) {
	if post.Status == models.PostStatusPublishing {
		return nil, lifecycle.ErrStateConflict
	}
	if c.Now.IsZero() {
		c.Now = s.now()
	}

	next, err := s.machine.Apply(post, action, c)
	if err != nil {
		return nil, err
	}

	if err := s.pr.Update(ctx, next, post.Status, post.Version, lifecycle.NewEvent(post, next, action, note)); err != nil {
		if errors.Is(err, lifecycle.ErrStateConflict) || errors.Is(err, lifecycle.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("error updating post: %w", err)
	}
	return next, nil
}

func (s *queueService) load(ctx context.Context, userID, id string) (*models.Post, error) {
	if id == "" {
		return nil, lifecycle.ErrNotFound
	}
	post, err := s.pr.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading post: %w", err)
	}
	if post == nil || post.UserID != userID {
		return nil, lifecycle.ErrNotFound
	}
	return post, nil
}

func (s *queueService) notify(ctx context.Context, post *models.Post) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyScheduled(ctx, post); err != nil {
		slog.Info("failed to enqueue wake-up", "post_id", post.ID, "error", err)
	}
}
