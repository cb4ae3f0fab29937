package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/contentflow/internal/models"
)

// EnqueueDispatch schedules a wake-up for payload after delay. Wake-ups are
// deduplicated per post and time, and never retried by asynq itself.
func EnqueueDispatch(ctx context.Context, client Enqueuer, payload DispatchPostPayload, at time.Time, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchPost, taskPayload)

	_, err = client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID(taskID(payload.PostID, at)),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func taskID(postID string, at time.Time) string {
	return fmt.Sprintf("%s:%s:%d", TaskTypeDispatchPost, postID, at.Unix())
}

// NotifyScheduled enqueues a wake-up at the post's scheduled time.
func (q *Queue) NotifyScheduled(ctx context.Context, post *models.Post) error {
	if post.Status != models.PostStatusScheduled || post.ScheduledTime == nil {
		return nil
	}

	delay := time.Until(*post.ScheduledTime)
	if delay < 0 {
		delay = 0
	}

	if err := EnqueueDispatch(ctx, q.client, DispatchPostPayload{PostID: post.ID}, *post.ScheduledTime, delay); err != nil {
		return fmt.Errorf("enqueue dispatch for post %s: %w", post.ID, err)
	}
	q.logger.Info("dispatch task scheduled", "post_id", post.ID, "scheduled_time", post.ScheduledTime, "delay", delay)
	return nil
}
