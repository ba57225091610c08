package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"FeedSentiment/internal/ports"
)

// CronScheduler runs a job on a robfig/cron schedule such as "@every 3s".
type CronScheduler struct {
	spec   string
	logger *log.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler for a cron expression; logger may be nil.
func NewCronScheduler(spec string, logger *log.Logger) *CronScheduler {
	return &CronScheduler{spec: spec, logger: logger}
}

// Every formats an interval as an "@every" schedule.
func Every(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}

// Start registers job and begins the cron loop. Overlapping runs are skipped.
// The loop also stops when ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	opts := []cron.Option{}
	if c.logger != nil {
		cl := cron.PrintfLogger(c.logger)
		opts = append(opts, cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	} else {
		opts = append(opts, cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	}

	runner := cron.New(opts...)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now()) }); err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}
	runner.Start()
	c.cron = runner

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the cron loop and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
