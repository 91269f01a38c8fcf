// Package scheduler drives reconciliation cycles at a fixed interval,
// or exactly once when the interval is zero.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the scheduler's observable lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateSleeping State = "sleeping"
	StateStopped  State = "stopped"
)

// CycleOutcome is what one cycle reports back to the scheduler.
type CycleOutcome struct {
	// Failed is the number of targets that failed.
	Failed int

	// Fatal reports whether any failure was an auth or permanent
	// condition.
	Fatal bool
}

// CycleFunc runs one full resolve-and-reconcile pass.
type CycleFunc func(ctx context.Context) CycleOutcome

// Scheduler is an explicit state machine:
// Idle -> Running -> (Sleeping -> Running)* -> Stopped.
// A graceful Stop lets an in-progress cycle finish and interrupts a
// sleep immediately; context cancellation additionally aborts the
// cycle's in-flight network calls.
type Scheduler struct {
	interval time.Duration
	run      CycleFunc
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for scheduling events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a scheduler. interval zero means run one cycle and stop.
func New(interval time.Duration, run CycleFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		run:      run,
		logger:   slog.Default(),
		state:    StateIdle,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Stop requests a graceful stop. An in-progress cycle finishes; a
// sleeping scheduler wakes and stops without starting another cycle.
// Safe to call more than once and from any goroutine.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// Run drives cycles until the interval policy or a stop ends the loop,
// then returns the outcome of the last completed cycle. The first
// cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) CycleOutcome {
	defer s.setState(StateStopped)

	var last CycleOutcome
	for {
		s.setState(StateRunning)
		last = s.run(ctx)

		if s.interval == 0 {
			s.logger.Info("single cycle complete, stopping")
			return last
		}
		if s.stopped() || ctx.Err() != nil {
			s.logger.Info("stop requested, shutting down after cycle")
			return last
		}

		s.setState(StateSleeping)
		select {
		case <-time.After(s.interval):
		case <-s.stopCh:
			s.logger.Info("stop requested during sleep, shutting down")
			return last
		case <-ctx.Done():
			s.logger.Info("context cancelled during sleep, shutting down")
			return last
		}
	}
}
