package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/contentflow/internal/dispatcher"
	"github.com/robfig/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	ticks    chan time.Time
	deadline bool
	stale    int
	err      error
}

func (f *fakeDispatcher) Tick(ctx context.Context) dispatcher.TickReport {
	_, f.deadline = ctx.Deadline()
	f.ticks <- time.Now()
	return dispatcher.TickReport{}
}

func (f *fakeDispatcher) RecoverStale(context.Context) (int, error) {
	f.stale++
	return 0, f.err
}

func TestDispatchJob_RunsTickWithTimeout(t *testing.T) {
	f := &fakeDispatcher{ticks: make(chan time.Time, 1)}
	NewDispatchJob(f, time.Minute).Run()

	require.Len(t, f.ticks, 1)
	assert.True(t, f.deadline)
}

func TestDispatchJob_ScheduledOnCron(t *testing.T) {
	f := &fakeDispatcher{ticks: make(chan time.Time, 4)}

	c := cron.New()
	require.NoError(t, c.AddJob("@every 1s", NewDispatchJob(f, 0)))
	c.Start()
	defer c.Stop()

	select {
	case <-f.ticks:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatch job never ran")
	}
}

func TestStaleClaimJob_SwallowsErrors(t *testing.T) {
	f := &fakeDispatcher{err: errors.New("db closed")}
	job := NewStaleClaimJob(f)

	job.Run()
	job.Run()
	assert.Equal(t, 2, f.stale)
}
