package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Runner executes one update cycle.
type Runner interface {
	Run(ctx context.Context) core.Outcome
}

// Snapshot is the observable state of the scheduler.
type Snapshot struct {
	Interval   time.Duration
	Cycles     int
	InProgress bool
	LastCheck  time.Time
	// LastOutcome is nil until the first cycle finished.
	LastOutcome *core.Outcome
}

// Scheduler runs update cycles one at a time: once at start, then on every
// tick and manual trigger. Triggers that arrive while a cycle runs collapse
// into a single follow-up cycle.
type Scheduler struct {
	runner    Runner
	sink      core.Sink
	restarter core.Restarter
	clock     clock.WithTicker

	trigger   chan struct{}
	intervals chan time.Duration

	mu    sync.RWMutex
	state Snapshot
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c clock.WithTicker) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New creates a Scheduler checking every interval.
func New(runner Runner, sink core.Sink, restarter core.Restarter, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:    runner,
		sink:      sink,
		restarter: restarter,
		clock:     clock.RealClock{},
		trigger:   make(chan struct{}, 1),
		intervals: make(chan time.Duration, 1),
		state:     Snapshot{Interval: interval},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is canceled or an installed update needs a restart.
// It returns nil on shutdown and the restart error if the restart failed.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info("Update scheduler started", "interval", s.Snapshot().Interval)

	if out := s.runCycle(ctx); out.Committed() {
		return s.restart(ctx)
	}

	ticker := s.clock.NewTicker(s.Snapshot().Interval)
	defer func() { ticker.Stop() }()

	for {
		select {
		case <-ctx.Done():
			log.Info("Update scheduler stopped")
			return nil
		case <-ticker.C():
			drain(s.trigger)
		case <-s.trigger:
			drainTicks(ticker)
		case d := <-s.intervals:
			ticker.Stop()
			ticker = s.clock.NewTicker(d)
			s.mu.Lock()
			s.state.Interval = d
			s.mu.Unlock()
			log.Info("Check interval changed", "interval", d)
			continue
		}

		if ctx.Err() != nil {
			return nil
		}
		if out := s.runCycle(ctx); out.Committed() {
			return s.restart(ctx)
		}
	}
}

// Trigger requests a check as soon as the loop is free. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SetInterval changes the period between scheduled checks.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case s.intervals <- d:
			return
		default:
		}
		// Replace a pending change nobody consumed yet.
		select {
		case <-s.intervals:
		default:
		}
	}
}

// Snapshot returns a copy of the scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) runCycle(ctx context.Context) (out core.Outcome) {
	s.mu.Lock()
	s.state.InProgress = true
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("%v", r), "Update cycle panicked")
			out = core.CheckFailed(fmt.Errorf("update cycle panicked: %v", r))
		}

		s.mu.Lock()
		s.state.InProgress = false
		s.state.Cycles++
		s.state.LastCheck = s.clock.Now()
		s.state.LastOutcome = &out
		s.mu.Unlock()

		s.sink.Report(out)
	}()

	return s.runner.Run(ctx)
}

func (s *Scheduler) restart(ctx context.Context) error {
	log.Info("Firmware committed, restarting device")
	if err := s.restarter.Restart(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("restart after update: %w", err)
	}
	return nil
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

func drainTicks(t clock.Ticker) {
	select {
	case <-t.C():
	default:
	}
}
