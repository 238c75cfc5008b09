package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mida-project/mission-cli/internal/notify"
)

// Job is one unit of scheduled work. Run must respect the context and
// return an error rather than calling os.Exit.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// entryState tracks one entry through its trigger lifecycle.
type entryState int

const (
	stateIdle entryState = iota
	stateRunning
)

// Entry is one scheduled job with its trigger.
type Entry struct {
	Job      Job
	Schedule cron.Schedule

	mu       sync.Mutex
	state    entryState
	next     time.Time
	lastRun  time.Time
	lastErr  error
	skipped  int
	runCount int
}

// EntrySnapshot is a point-in-time view of an entry's run state.
type EntrySnapshot struct {
	Job     string
	Running bool
	NextRun time.Time
	LastRun time.Time
	LastErr error
	Runs    int
	Skipped int
}

// Snapshot returns the entry's current state for status display.
func (e *Entry) Snapshot() EntrySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EntrySnapshot{
		Job:     e.Job.Name(),
		Running: e.state == stateRunning,
		NextRun: e.next,
		LastRun: e.lastRun,
		LastErr: e.lastErr,
		Runs:    e.runCount,
		Skipped: e.skipped,
	}
}

// Scheduler drives a set of cron-triggered jobs in a single process. Jobs
// run concurrently with the trigger loop, but each job runs at most once
// at a time: a trigger that fires while the previous run is still going is
// skipped and logged, never queued.
type Scheduler struct {
	entries  []*Entry
	clock    Clock
	notifier *notify.Notifier
	wg       sync.WaitGroup
}

// New creates a Scheduler on the real clock.
func New(notifier *notify.Notifier) *Scheduler {
	return &Scheduler{clock: RealClock(), notifier: notifier}
}

// WithClock overrides the scheduler's clock. Used by tests.
func (s *Scheduler) WithClock(c Clock) *Scheduler {
	s.clock = c
	return s
}

// Add registers a job under a standard 5-field cron expression.
func (s *Scheduler) Add(job Job, cronExpr string) error {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return eris.Wrapf(err, "scheduler: parse schedule %q for job %s", cronExpr, job.Name())
	}
	s.entries = append(s.entries, &Entry{Job: job, Schedule: sched})
	return nil
}

// Entries returns the registered entries.
func (s *Scheduler) Entries() []*Entry { return s.entries }

// Run drives the trigger loop until the context is cancelled, then waits
// for in-flight jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "scheduler"))

	now := s.clock.Now()
	for _, e := range s.entries {
		e.mu.Lock()
		e.next = e.Schedule.Next(now)
		next := e.next
		e.mu.Unlock()
		log.Info("job scheduled",
			zap.String("job", e.Job.Name()),
			zap.Time("next_run", next))
	}

	for {
		next := s.soonest()
		if next.IsZero() {
			log.Warn("no jobs registered, scheduler idle")
			<-ctx.Done()
			break
		}

		wait := next.Sub(s.clock.Now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			log.Info("scheduler stopping, waiting for running jobs")
			s.wg.Wait()
			return nil
		case <-s.clock.After(wait):
		}

		now := s.clock.Now()
		for _, e := range s.entries {
			e.mu.Lock()
			due := !e.next.After(now)
			if due {
				e.next = e.Schedule.Next(now)
			}
			e.mu.Unlock()
			if due {
				s.trigger(ctx, e, now)
			}
		}
	}

	s.wg.Wait()
	return nil
}

// RunOnce executes a single registered job by name, outside the trigger
// loop, with the same notification behavior.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, e := range s.entries {
		if e.Job.Name() == name {
			s.trigger(ctx, e, s.clock.Now())
			s.wg.Wait()
			e.mu.Lock()
			err := e.lastErr
			e.mu.Unlock()
			return err
		}
	}
	return eris.Errorf("scheduler: unknown job %q", name)
}

func (s *Scheduler) soonest() time.Time {
	var min time.Time
	for _, e := range s.entries {
		e.mu.Lock()
		next := e.next
		e.mu.Unlock()
		if min.IsZero() || next.Before(min) {
			min = next
		}
	}
	return min
}

// trigger launches one job run, or skips it when the previous run is still
// in flight.
func (s *Scheduler) trigger(ctx context.Context, e *Entry, now time.Time) {
	log := zap.L().With(
		zap.String("component", "scheduler"),
		zap.String("job", e.Job.Name()))

	e.mu.Lock()
	if e.state == stateRunning {
		e.skipped++
		e.mu.Unlock()
		log.Warn("previous run still in flight, skipping trigger",
			zap.Time("trigger", now))
		return
	}
	e.state = stateRunning
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		start := s.clock.Now()
		err := s.runGuarded(ctx, e.Job)

		e.mu.Lock()
		e.state = stateIdle
		e.lastErr = err
		e.runCount++
		e.mu.Unlock()

		if err != nil {
			log.Error("job failed", zap.Error(err),
				zap.Duration("elapsed", s.clock.Now().Sub(start)))
			if s.notifier != nil {
				s.notifier.JobFailed(ctx, e.Job.Name(), err)
			}
			return
		}
		log.Info("job succeeded",
			zap.Duration("elapsed", s.clock.Now().Sub(start)))
	}()
}

// runGuarded converts a job panic into an error so one bad job cannot take
// the scheduler down.
func (s *Scheduler) runGuarded(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("scheduler: job %s panicked: %v", job.Name(), r)
		}
	}()
	return job.Run(ctx)
}
