package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/contentflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func option(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

type firerFunc func(ctx context.Context, id string) error

func (f firerFunc) FireDue(ctx context.Context, id string) error { return f(ctx, id) }

func TestNotifyScheduled_EnqueuesDedupedTask(t *testing.T) {
	client := &recordingClient{}
	q := NewQueue(client, nil, nil)

	at := time.Now().Add(time.Hour).UTC()
	post := &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledTime: &at}
	require.NoError(t, q.NotifyScheduled(context.Background(), post))

	require.Len(t, client.tasks, 1)
	assert.Equal(t, TaskTypeDispatchPost, client.tasks[0].Type())

	var payload DispatchPostPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	assert.Equal(t, "p1", payload.PostID)

	id, ok := option(client.opts[0], asynq.TaskIDOpt)
	require.True(t, ok)
	assert.Equal(t, taskID("p1", at), id)

	retries, ok := option(client.opts[0], asynq.MaxRetryOpt)
	require.True(t, ok)
	assert.Equal(t, 0, retries)

	delay, ok := option(client.opts[0], asynq.ProcessInOpt)
	require.True(t, ok)
	assert.InDelta(t, float64(time.Hour), float64(delay.(time.Duration)), float64(time.Minute))
}

func TestNotifyScheduled_IgnoresUnscheduledPosts(t *testing.T) {
	client := &recordingClient{}
	q := NewQueue(client, nil, nil)

	require.NoError(t, q.NotifyScheduled(context.Background(), &models.Post{ID: "p1", Status: models.PostStatusApproved}))
	assert.Empty(t, client.tasks)
}

func TestNotifyScheduled_DuplicateTaskIsNotAnError(t *testing.T) {
	q := NewQueue(&recordingClient{err: asynq.ErrTaskIDConflict}, nil, nil)
	at := time.Now().Add(-time.Minute)

	err := q.NotifyScheduled(context.Background(), &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledTime: &at})
	assert.NoError(t, err)

	q = NewQueue(&recordingClient{err: errors.New("redis down")}, nil, nil)
	err = q.NotifyScheduled(context.Background(), &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledTime: &at})
	assert.ErrorContains(t, err, "redis down")
}

func TestHandleDispatchPostTask(t *testing.T) {
	var fired []string
	q := NewQueue(nil, firerFunc(func(_ context.Context, id string) error {
		fired = append(fired, id)
		if id == "broken" {
			return errors.New("db closed")
		}
		return nil
	}), nil)

	payload, _ := json.Marshal(DispatchPostPayload{PostID: "p1"})
	require.NoError(t, q.HandleDispatchPostTask(context.Background(), asynq.NewTask(TaskTypeDispatchPost, payload)))
	assert.Equal(t, []string{"p1"}, fired)

	payload, _ = json.Marshal(DispatchPostPayload{PostID: "broken"})
	assert.Error(t, q.HandleDispatchPostTask(context.Background(), asynq.NewTask(TaskTypeDispatchPost, payload)))

	err := q.HandleDispatchPostTask(context.Background(), asynq.NewTask(TaskTypeDispatchPost, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = q.HandleDispatchPostTask(context.Background(), asynq.NewTask(TaskTypeDispatchPost, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, fired, 2)
}
