package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job deletes history rows older than the retention window on a cron schedule
// (six fields, seconds first).
type Job struct {
	pruner    Pruner
	retention time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

func New(pruner Pruner, retention time.Duration, schedule string) (*Job, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	j := &Job{
		pruner:    pruner,
		retention: retention,
		now:       time.Now,
		cron:      cron.New(cron.WithSeconds()),
	}
	if _, err := j.cron.AddFunc(schedule, func() { _, _ = j.Prune(context.Background()) }); err != nil {
		return nil, fmt.Errorf("prune schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Job) Start() { j.cron.Start() }

// Stop waits for a running prune to finish.
func (j *Job) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Job) Prune(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention).UTC()
	n, err := j.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		slog.Warn("history prune failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	if n > 0 {
		slog.Info("history pruned", "rows", n, "cutoff", cutoff)
	}
	return n, nil
}
