package queue

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Firer publishes a post by id if it is still scheduled and due.
type Firer interface {
	FireDue(ctx context.Context, id string) error
}

// Enqueuer is the part of *asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Queue struct {
	client Enqueuer
	firer  Firer
	logger *slog.Logger
}

func NewQueue(client Enqueuer, firer Firer, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client: client,
		firer:  firer,
		logger: logger,
	}
}

const TaskTypeDispatchPost = "dispatch:post"

type DispatchPostPayload struct {
	PostID string `json:"post_id"`
}
