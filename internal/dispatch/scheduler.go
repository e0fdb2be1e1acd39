// internal/dispatch/scheduler.go
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// CycleRunner is what the scheduler drives; satisfied by *Engine.
type CycleRunner interface {
	RunClaimCycle(ctx context.Context) CycleSummary
}

// Scheduler owns the periodic trigger. Ticks that arrive while a cycle is
// still in flight are skipped, not stacked, so a slow cycle never piles up
// concurrent runs from the same process. (Concurrent runs from other
// processes remain safe regardless, via the store's conditional updates.)
type Scheduler struct {
	Interval time.Duration
	Runner   CycleRunner
	Logger   zerolog.Logger

	running  atomic.Bool
	inFlight atomic.Bool

	mu     sync.Mutex // guards cancel and done across Start/Stop
	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerStatus is exposed for observability.
type SchedulerStatus struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
}

func NewScheduler(interval time.Duration, runner CycleRunner, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		Interval: interval,
		Runner:   runner,
		Logger:   logger,
	}
}

// Start launches the tick loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	s.done = done

	go func() {
		defer close(done)
		defer s.running.Store(false)

		s.Logger.Info().Dur("interval", s.Interval).Msg("dispatch scheduler started")
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.Logger.Info().Msg("dispatch scheduler stopped")
				return
			case <-ticker.C:
				s.Trigger(ctx)
			}
		}
	}()
}

// Trigger runs one cycle unless one is already in flight, in which case it is
// skipped. Returns whether the cycle ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.Logger.Warn().Msg("previous cycle still running, skipping tick")
		return false
	}
	defer s.inFlight.Store(false)

	summary := s.Runner.RunClaimCycle(ctx)
	s.Logger.Info().
		Int("processed", summary.Processed).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("errors", len(summary.Errors)).
		Msg("claim cycle finished")
	return true
}

// Stop cancels the loop and waits for it to wind down. Safe to call on a
// scheduler that was never started, or concurrently with Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) Status() SchedulerStatus {
	return SchedulerStatus{
		Running:  s.running.Load(),
		Interval: s.Interval,
	}
}
