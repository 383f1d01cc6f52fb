// Package cron runs the periodic jobs: the reminder scan, the shelf audit
// scan, backups and role sync. Each job can also be triggered on demand.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/grabngo/loaner/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Job names
const (
	JobReminders = "reminders"
	JobAudit     = "shelf_audit"
	JobBackup    = "backup"
	JobRoleSync  = "role_sync"
)

// JobFunc is one periodic unit of work. The returned value is logged and
// reported back to on-demand callers.
type JobFunc func(ctx context.Context) (interface{}, error)

type job struct {
	schedule string
	run      JobFunc
	mu       sync.Mutex
}

// Scheduler owns the registered jobs and the cron runner
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]*job
	timeout time.Duration
}

// NewScheduler creates a scheduler running in UTC
func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		jobs:    make(map[string]*job),
		timeout: timeout,
	}
}

// Add registers a job. An empty schedule registers it for on-demand runs only.
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{schedule: schedule, run: fn}
	if schedule != "" {
		if _, err := s.cron.AddFunc(schedule, func() { _, _ = s.execute(context.Background(), name, j) }); err != nil {
			return fmt.Errorf("invalid schedule for %s: %w", name, err)
		}
	}
	s.jobs[name] = j
	return nil
}

// Names lists the registered jobs
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Start begins firing scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("⏰ Scheduler started with %d jobs", len(s.cron.Entries()))
}

// Stop waits for running jobs to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// ErrUnknownJob is returned by Trigger for an unregistered name
var ErrUnknownJob = errors.New("unknown job")

// Trigger runs a job now in the calling goroutine
func (s *Scheduler) Trigger(ctx context.Context, name string) (interface{}, error) {
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, name, j)
}

// execute runs a job; runs of the same job never overlap
func (s *Scheduler) execute(ctx context.Context, name string, j *job) (interface{}, error) {
	if !j.mu.TryLock() {
		log.Printf("⏭️  Job %s still running, skipping", name)
		metrics.JobsRun.WithLabelValues(name, "skipped").Inc()
		return nil, nil
	}
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := j.run(ctx)
	if err != nil {
		log.Printf("❌ Job %s failed after %s: %v", name, time.Since(start).Round(time.Millisecond), err)
		metrics.JobsRun.WithLabelValues(name, "failed").Inc()
		return nil, err
	}
	log.Printf("✅ Job %s finished in %s: %+v", name, time.Since(start).Round(time.Millisecond), res)
	metrics.JobsRun.WithLabelValues(name, "ok").Inc()
	return res, nil
}
