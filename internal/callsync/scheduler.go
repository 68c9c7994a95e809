package callsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the scheduler's execution state.
type State int

const (
	// StateIdle means no cycle is running.
	StateIdle State = iota
	// StateRunning means a cycle is in progress.
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// CycleFunc runs one sync cycle.
type CycleFunc func(ctx context.Context) CycleReport

// Scheduler runs cycles one at a time and reschedules after each completes.
type Scheduler struct {
	mu       sync.Mutex
	state    State
	cycle    CycleFunc
	interval time.Duration
	onCycle  func(CycleReport)
	now      func() time.Time
}

// NewScheduler creates a Scheduler. onCycle, if set, receives every report.
func NewScheduler(cycle CycleFunc, interval time.Duration, onCycle func(CycleReport)) *Scheduler {
	return &Scheduler{
		state:    StateIdle,
		cycle:    cycle,
		interval: interval,
		onCycle:  onCycle,
		now:      time.Now,
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return false
	}
	s.state = StateRunning
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// Trigger runs a cycle synchronously. It returns false without doing
// anything when a cycle is already running.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.begin() {
		return false
	}
	defer s.end()
	s.runCycle(ctx)
	return true
}

// TriggerAsync starts a cycle in the background. It returns false when a
// cycle is already running.
func (s *Scheduler) TriggerAsync(ctx context.Context) bool {
	if !s.begin() {
		return false
	}
	go func() {
		defer s.end()
		s.runCycle(ctx)
	}()
	return true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("scheduler: cycle panicked",
				zap.String("component", "callsync.scheduler"),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			if s.onCycle != nil {
				s.onCycle(CycleReport{
					StartedAt:  started,
					FinishedAt: s.now(),
					Panic:      fmt.Sprint(r),
				})
			}
		}
	}()

	report := s.cycle(ctx)
	if s.onCycle != nil {
		s.onCycle(report)
	}
}

// Run triggers a cycle immediately and then again interval after each cycle
// finishes, until ctx is cancelled. A slow cycle stretches the period; cycles
// never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "callsync.scheduler"))
	log.Info("scheduler: started", zap.Duration("interval", s.interval))

	for {
		if !s.Trigger(ctx) {
			log.Debug("scheduler: cycle already running, trigger skipped")
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("scheduler: stopped")
			return nil
		case <-timer.C:
		}
	}
}
