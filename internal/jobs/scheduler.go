package jobs

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"
)

// JobStatus is one scheduled job's state as reported by the runtime stats
// endpoint.
type JobStatus struct {
	Name    string     `json:"name"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// Scheduler runs the background maintenance jobs. All cron expressions are
// evaluated in UTC.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu   sync.RWMutex
	jobs map[string]gocron.Job
}

// NewScheduler creates a stopped scheduler; call Start after registering
// jobs.
func NewScheduler() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: scheduler,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// ValidateCron checks a five-field cron expression.
func ValidateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// AddCronJob registers a task on a five-field cron expression.
func (s *Scheduler) AddCronJob(name, expr string, task func()) error {
	if err := ValidateCron(expr); err != nil {
		return err
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()

	log.Printf("📅 [SCHEDULER] Registered job %s (cron: %s)", name, expr)
	return nil
}

// AddIntervalJob registers a task that runs every fixed interval.
func (s *Scheduler) AddIntervalJob(name string, interval time.Duration, task func()) error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = job
	s.mu.Unlock()

	log.Printf("📅 [SCHEDULER] Registered job %s (every %v)", name, interval)
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()

	s.scheduler.Start()
	log.Printf("🚀 [SCHEDULER] Started with %d jobs", count)
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	log.Println("🛑 [SCHEDULER] Stopping...")
	return s.scheduler.Shutdown()
}

// Status reports every registered job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for name, job := range s.jobs {
		status := JobStatus{Name: name}
		if t, err := job.LastRun(); err == nil && !t.IsZero() {
			last := t
			status.LastRun = &last
		}
		if t, err := job.NextRun(); err == nil && !t.IsZero() {
			next := t
			status.NextRun = &next
		}
		out = append(out, status)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
