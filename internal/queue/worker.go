package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// HandleDispatchPostTask wakes the dispatcher for one post. Posts that were
// cancelled, rescheduled or already published are left alone.
func (q *Queue) HandleDispatchPostTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode dispatch payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PostID == "" {
		return fmt.Errorf("dispatch payload without post id: %w", asynq.SkipRetry)
	}

	if err := q.firer.FireDue(ctx, payload.PostID); err != nil {
		q.logger.Error("dispatch task failed", "post_id", payload.PostID, "error", err)
		return err
	}
	return nil
}
