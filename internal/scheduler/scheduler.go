// Package scheduler runs periodic trend sweeps on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"marketlens/internal/model"
	"marketlens/internal/notification"

	"github.com/robfig/cron/v3"
)

// Sweeper classifies a batch of symbols. *analysis.Service satisfies it.
type Sweeper interface {
	Sweep(ctx context.Context, symbols []string) (model.SweepRun, error)
}

// Calendar reports whether the exchange trades on a given date.
type Calendar interface {
	IsTradingDay(t time.Time) bool
}

// Scheduler owns the cron runner. Specs use the six-field form with seconds.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a stopped scheduler.
func New() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds())}
}

// Add registers fn under spec.
func (s *Scheduler) Add(name, spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	log.Printf("[scheduler] registered %s at %q", name, spec)
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[scheduler] started")
}

// Stop stops the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[scheduler] stopped")
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// SweepJob runs one sweep and fans the result out. Every sink is optional.
type SweepJob struct {
	Sweeper        Sweeper
	Symbols        []string
	Recorder       model.SweepRecorder
	Publish        []func(ctx context.Context, run model.SweepRun) error
	Notifier       notification.Notifier
	AlertThreshold float64
	Timeout        time.Duration
	OnDone         func(run model.SweepRun)

	// Calendar, when set, makes Run skip non-trading days.
	Calendar Calendar
	now      func() time.Time

	// Overlapping ticks are skipped while a sweep is still running.
	running sync.Mutex
}

// Run executes the sweep. It is the cron callback.
func (j *SweepJob) Run() {
	if !j.running.TryLock() {
		log.Println("[scheduler] previous sweep still running, skipping tick")
		return
	}
	defer j.running.Unlock()

	if j.Calendar != nil {
		now := time.Now
		if j.now != nil {
			now = j.now
		}
		if !j.Calendar.IsTradingDay(now()) {
			log.Println("[scheduler] not a trading day, skipping sweep")
			return
		}
	}

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		log.Printf("[scheduler] sweep failed: %v", err)
	}
}

// RunOnce runs a sweep with ctx and delivers it to every sink. Sink failures
// are logged; only the sweep itself can fail the call.
func (j *SweepJob) RunOnce(ctx context.Context) (model.SweepRun, error) {
	run, err := j.Sweeper.Sweep(ctx, j.Symbols)
	if err != nil {
		return run, err
	}

	if j.Recorder != nil {
		if err := j.Recorder.RecordSweep(ctx, run); err != nil {
			log.Printf("[scheduler] record sweep: %v", err)
		}
	}
	for _, pub := range j.Publish {
		if err := pub(ctx, run); err != nil {
			log.Printf("[scheduler] publish sweep: %v", err)
		}
	}
	if j.Notifier != nil {
		if alert, ok := notification.SweepAlert(run, j.AlertThreshold); ok {
			if err := j.Notifier.Send(ctx, alert); err != nil {
				log.Printf("[scheduler] send alert: %v", err)
			}
		}
	}
	if j.OnDone != nil {
		j.OnDone(run)
	}
	return run, nil
}
