// Package dispatcher fires due scheduled posts and owns the single publish path.
//
// Every publication, whether it comes from a tick, an asynq wake-up or a
// user's post-now request, goes through Fire: claim, validate, call the
// gateway, then record the outcome through the state machine. The claim is a
// conditional store update, so at most one caller publishes a given post.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/contentflow/internal/gateway"
	"github.com/maheshrc27/contentflow/internal/lifecycle"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/maheshrc27/contentflow/internal/repository"
	"github.com/maheshrc27/contentflow/internal/retry"
	"github.com/maheshrc27/contentflow/internal/validation"
)

const (
	DefaultBatchSize      = 100
	DefaultPublishTimeout = 30 * time.Second
	DefaultClaimTTL       = 10 * time.Minute

	// recordAttempts bounds how often a posted result is written before the
	// provider id is parked on the claim for recovery.
	recordAttempts = 3
	recordBackoff  = 50 * time.Millisecond
)

type Config struct {
	BatchSize      int
	PublishTimeout time.Duration
	ClaimTTL       time.Duration
}

// Notifier is told when a post goes back to scheduled so it can be woken
// up at its new time.
type Notifier interface {
	NotifyScheduled(ctx context.Context, post *models.Post) error
}

type TickReport struct {
	Due       int
	Published int
	Retried   int
	Failed    int
	Skipped   int
	Errors    int
	// Overlapped is set when the tick did nothing because another was running.
	Overlapped bool
}

type Dispatcher struct {
	posts     repository.PostRepository
	machine   *lifecycle.Machine
	validator lifecycle.Validator
	gateway   gateway.Gateway
	retry     retry.Policy
	cfg       Config
	logger    *slog.Logger
	notifier  Notifier
	now       func() time.Time
	running   atomic.Bool
}

func New(
	posts repository.PostRepository,
	machine *lifecycle.Machine,
	validator lifecycle.Validator,
	gw gateway.Gateway,
	policy retry.Policy,
	cfg Config,
	logger *slog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		posts:     posts,
		machine:   machine,
		validator: validator,
		gateway:   gw,
		retry:     policy,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (d *Dispatcher) SetNotifier(n Notifier) {
	d.notifier = n
}

// SetClock replaces the time source used for due checks and recorded times.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Tick publishes every post that is due now. A tick that starts while the
// previous one is still running returns immediately.
func (d *Dispatcher) Tick(ctx context.Context) TickReport {
	var report TickReport
	if !d.running.CompareAndSwap(false, true) {
		d.logger.Warn("dispatch tick skipped, previous tick still running")
		report.Overlapped = true
		return report
	}
	defer d.running.Store(false)

	due, err := d.posts.FindDue(ctx, d.now(), d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("failed to find due posts", "error", err)
		report.Errors++
		return report
	}
	report.Due = len(due)

	for _, post := range due {
		if ctx.Err() != nil {
			break
		}
		d.fireOne(ctx, post, &report)
	}

	if report.Due > 0 {
		d.logger.Info("dispatch tick finished",
			"due", report.Due,
			"published", report.Published,
			"retried", report.Retried,
			"failed", report.Failed,
			"skipped", report.Skipped,
			"errors", report.Errors,
		)
	}
	return report
}

func (d *Dispatcher) fireOne(ctx context.Context, post *models.Post, report *TickReport) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while dispatching post", "post_id", post.ID, "panic", r)
			report.Errors++
		}
	}()

	result, err := d.Fire(ctx, post, models.PostStatusScheduled)
	switch {
	case errors.Is(err, lifecycle.ErrStateConflict):
		report.Skipped++
	case err == nil && result.Status == models.PostStatusPosted:
		report.Published++
	case result != nil && result.Status == models.PostStatusScheduled:
		report.Retried++
	case result != nil && result.Status == models.PostStatusFailed:
		report.Failed++
	default:
		d.logger.Error("failed to dispatch post", "post_id", post.ID, "error", err)
		report.Errors++
	}
}

// FireDue publishes the post if it is still scheduled and due. Any other
// state is a no-op, which makes stale wake-ups harmless.
func (d *Dispatcher) FireDue(ctx context.Context, id string) error {
	post, err := d.posts.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load post %s: %w", id, err)
	}
	if post == nil || post.Status != models.PostStatusScheduled {
		return nil
	}
	if post.ScheduledTime == nil || post.ScheduledTime.After(d.now()) {
		return nil
	}

	_, err = d.Fire(ctx, post, models.PostStatusScheduled)
	if errors.Is(err, lifecycle.ErrStateConflict) {
		return nil
	}
	var pe *lifecycle.PreconditionError
	if errors.As(err, &pe) || errors.Is(err, gateway.ErrTransient) || errors.Is(err, gateway.ErrPermanent) {
		// The outcome is recorded on the post.
		return nil
	}
	return err
}

// Fire claims post, which must currently be in expected, and attempts to
// publish it. The returned post reflects the recorded outcome even when an
// error is returned. A transient failure that was rescheduled is not an
// error: the post comes back scheduled. A lost claim yields ErrStateConflict.
func (d *Dispatcher) Fire(ctx context.Context, post *models.Post, expected models.Status) (*models.Post, error) {
	if post.Status == models.PostStatusPublishing {
		return post, lifecycle.ErrStateConflict
	}
	if post.Status != expected {
		return post, fmt.Errorf("post %s is %s, expected %s: %w", post.ID, post.Status, expected, lifecycle.ErrStateConflict)
	}

	claimed, err := d.machine.Apply(post, lifecycle.ActionClaim, lifecycle.Context{Now: d.now()})
	if err != nil {
		return post, err
	}
	ok, err := d.posts.Claim(ctx, claimed, expected, post.Version, lifecycle.NewEvent(post, claimed, lifecycle.ActionClaim, ""))
	if err != nil {
		return post, fmt.Errorf("claim post %s: %w", post.ID, err)
	}
	if !ok {
		return post, lifecycle.ErrStateConflict
	}

	if issues := d.validator.Validate(claimed); len(issues) > 0 {
		perr := &lifecycle.PreconditionError{Issues: issues}
		failed, err := d.record(ctx, claimed, lifecycle.ActionFail, lifecycle.Context{Reason: perr.Error()})
		if err != nil {
			return claimed, err
		}
		d.logger.Warn("post failed publish preconditions", "post_id", post.ID, "platform", post.Platform, "issues", validation.Summary(issues))
		return failed, perr
	}

	res, gwErr := d.publish(ctx, claimed)
	if gwErr != nil {
		return d.handleFailure(ctx, claimed, gwErr)
	}

	posted, err := d.recordPublished(ctx, claimed, res.PlatformPostID)
	if err != nil {
		return claimed, err
	}
	d.logger.Info("post published", "post_id", post.ID, "platform", post.Platform, "platform_post_id", res.PlatformPostID)
	return posted, nil
}

// recordPublished writes the posted outcome, retrying store failures a few
// times. The provider already holds the post at this point, so when the write
// keeps failing the id is parked on the claim and RecoverStale completes the
// post instead of publishing it again.
func (d *Dispatcher) recordPublished(ctx context.Context, claimed *models.Post, platformPostID string) (*models.Post, error) {
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		var posted *models.Post
		posted, err = d.record(ctx, claimed, lifecycle.ActionPublish, lifecycle.Context{PlatformPostID: platformPostID})
		if err == nil {
			return posted, nil
		}
		var te *lifecycle.TransitionError
		if errors.As(err, &te) || errors.Is(err, lifecycle.ErrStateConflict) || errors.Is(err, lifecycle.ErrNotFound) {
			return nil, err
		}
		d.logger.Warn("failed to record published post", "post_id", claimed.ID, "attempt", attempt, "error", err)
		if attempt < recordAttempts && !sleep(ctx, time.Duration(attempt)*recordBackoff) {
			break
		}
	}

	if perr := d.posts.RecordProviderID(context.WithoutCancel(ctx), claimed.ID, claimed.Version, platformPostID); perr != nil {
		d.logger.Error("failed to keep provider id on claim", "post_id", claimed.ID, "platform_post_id", platformPostID, "error", perr)
	} else {
		id := platformPostID
		claimed.ClaimedPostID = &id
	}
	return nil, fmt.Errorf("post %s published as %s but not recorded: %w", claimed.ID, platformPostID, err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (d *Dispatcher) publish(ctx context.Context, post *models.Post) (res *gateway.Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, gateway.Transient(0, fmt.Sprintf("gateway panic: %v", r))
		}
	}()

	res, err = d.gateway.Publish(ctx, post)
	if err == nil && (res == nil || res.PlatformPostID == "") {
		return nil, gateway.Permanent(0, "provider returned no post id")
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, gateway.Transient(0, fmt.Sprintf("publish timed out after %s", d.cfg.PublishTimeout))
	}
	return res, err
}

func (d *Dispatcher) handleFailure(ctx context.Context, claimed *models.Post, cause error) (*models.Post, error) {
	decision := d.retry.ShouldRetry(claimed, cause)

	if decision.Retry {
		next, err := d.record(ctx, claimed, lifecycle.ActionRetry, lifecycle.Context{
			ScheduledTime: d.now().Add(decision.After),
			Reason:        decision.Reason,
		})
		if err != nil {
			return claimed, err
		}
		d.logger.Warn("publish failed, retry scheduled",
			"post_id", claimed.ID, "attempt", next.AttemptCount, "retry_in", decision.After, "error", cause)
		d.notify(ctx, next)
		return next, nil
	}

	next, err := d.record(ctx, claimed, lifecycle.ActionFail, lifecycle.Context{Reason: decision.Reason, Attempted: true})
	if err != nil {
		return claimed, err
	}
	d.logger.Error("publish failed permanently", "post_id", claimed.ID, "attempt", next.AttemptCount, "error", cause)
	return next, fmt.Errorf("publish post %s: %w", claimed.ID, cause)
}

// RecoverStale releases claims older than the claim TTL. A claim that already
// holds a provider id is completed as posted. Any other is treated as an
// interrupted transient attempt.
func (d *Dispatcher) RecoverStale(ctx context.Context) (int, error) {
	stale, err := d.posts.ListStale(ctx, d.now().Add(-d.cfg.ClaimTTL))
	if err != nil {
		return 0, fmt.Errorf("list stale claims: %w", err)
	}

	recovered := 0
	for _, post := range stale {
		if post.ClaimedPostID != nil {
			if _, err := d.record(ctx, post, lifecycle.ActionPublish, lifecycle.Context{PlatformPostID: *post.ClaimedPostID}); err != nil {
				d.logger.Error("failed to complete published claim", "post_id", post.ID, "error", err)
				continue
			}
			d.logger.Info("completed published claim", "post_id", post.ID, "platform_post_id", *post.ClaimedPostID)
			recovered++
			continue
		}
		cause := gateway.Transient(0, "publish interrupted before completion")
		if _, err := d.handleFailure(ctx, post, cause); err != nil && !errors.Is(err, gateway.ErrTransient) {
			d.logger.Error("failed to recover stale claim", "post_id", post.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		d.logger.Info("recovered stale claims", "count", recovered)
	}
	return recovered, nil
}

// record applies action to the claimed post and persists it against the
// claim's status and version.
func (d *Dispatcher) record(ctx context.Context, claimed *models.Post, action lifecycle.Action, c lifecycle.Context) (*models.Post, error) {
	c.Now = d.now()
	next, err := d.machine.Apply(claimed, action, c)
	if err != nil {
		return nil, err
	}
	ev := lifecycle.NewEvent(claimed, next, action, c.Reason)
	if err := d.posts.Update(ctx, next, claimed.Status, claimed.Version, ev); err != nil {
		return nil, fmt.Errorf("record %s for post %s: %w", action, claimed.ID, err)
	}
	return next, nil
}

func (d *Dispatcher) notify(ctx context.Context, post *models.Post) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyScheduled(ctx, post); err != nil {
		d.logger.Warn("failed to enqueue wake-up", "post_id", post.ID, "error", err)
	}
}
