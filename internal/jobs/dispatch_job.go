package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/contentflow/internal/dispatcher"
)

type Ticker interface {
	Tick(ctx context.Context) dispatcher.TickReport
}

type StaleRecoverer interface {
	RecoverStale(ctx context.Context) (int, error)
}

// DispatchJob runs one dispatcher tick per cron firing.
type DispatchJob struct {
	d       Ticker
	timeout time.Duration
}

func NewDispatchJob(d Ticker, timeout time.Duration) *DispatchJob {
	return &DispatchJob{
		d:       d,
		timeout: timeout,
	}
}

func (j *DispatchJob) Run() {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report := j.d.Tick(ctx)
	if report.Errors > 0 {
		slog.Info("dispatch tick finished with errors", "errors", report.Errors)
	}
}

// StaleClaimJob releases publish claims left behind by a crashed process.
type StaleClaimJob struct {
	d StaleRecoverer
}

func NewStaleClaimJob(d StaleRecoverer) *StaleClaimJob {
	return &StaleClaimJob{d: d}
}

func (j *StaleClaimJob) Run() {
	if _, err := j.d.RecoverStale(context.Background()); err != nil {
		slog.Info(err.Error())
	}
}
