package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

// ActivityJob refreshes client activity flags on a cron schedule.
type ActivityJob struct {
	analyzer *ActivityAnalyzer
	schedule string
	years    int
	timeout  time.Duration
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewActivityJob(analyzer *ActivityAnalyzer, schedule string, years int) *ActivityJob {
	if schedule == "" {
		schedule = "@daily"
	}
	return &ActivityJob{
		analyzer: analyzer,
		schedule: schedule,
		years:    years,
		timeout:  5 * time.Minute,
		now:      time.Now,
	}
}

// Start registers the job and starts the scheduler. It fails on a malformed
// schedule expression.
func (j *ActivityJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.schedule, j.RunOnce); err != nil {
		return fmt.Errorf("activity schedule %q: %w", j.schedule, err)
	}
	c.Start()
	j.cron = c

	logger.Info("Activity job started", "schedule", j.schedule, "threshold_years", j.years)
	return nil
}

// Stop waits for a running refresh to finish or ctx to end.
func (j *ActivityJob) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	logger.Info("Activity job stopped")
}

func (j *ActivityJob) RunOnce() {
	ctx, cancel := context.WithTimeout(logger.WithService(context.Background(), "activity"), j.timeout)
	defer cancel()

	if _, err := j.analyzer.RefreshActivityFlags(ctx, j.now(), j.years); err != nil {
		logger.ErrorContext(ctx, "Activity refresh failed", "error", err)
	}
}
