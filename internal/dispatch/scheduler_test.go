package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/adworldmediaonline/email-cron/internal/dispatch"
)

// blockingRunner parks inside RunClaimCycle until released.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) RunClaimCycle(ctx context.Context) dispatch.CycleSummary {
	r.started <- struct{}{}
	<-r.release
	return dispatch.CycleSummary{}
}

func TestOverlappingTriggersAreSkipped(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := dispatch.NewScheduler(time.Minute, runner, zerolog.Nop())

	first := make(chan bool)
	go func() {
		first <- s.Trigger(context.Background())
	}()
	<-runner.started

	// A second trigger while the first cycle is in flight must be skipped,
	// not stacked.
	assert.False(t, s.Trigger(context.Background()))

	close(runner.release)
	assert.True(t, <-first)
}

type nopRunner struct{}

func (nopRunner) RunClaimCycle(ctx context.Context) dispatch.CycleSummary {
	return dispatch.CycleSummary{}
}

func TestSchedulerLifecycleStatus(t *testing.T) {
	s := dispatch.NewScheduler(time.Minute, nopRunner{}, zerolog.Nop())

	status := s.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Minute, status.Interval)

	s.Start(context.Background())
	assert.True(t, s.Status().Running)

	// Start is idempotent while running.
	s.Start(context.Background())
	assert.True(t, s.Status().Running)

	s.Stop()
	assert.False(t, s.Status().Running)
}

func TestStopRacingStart(t *testing.T) {
	// Stop must tolerate a concurrent first Start: either it sees no loop yet
	// and returns, or it tears the fresh loop down. It must never observe a
	// half-initialized scheduler.
	for i := 0; i < 100; i++ {
		s := dispatch.NewScheduler(time.Minute, nopRunner{}, zerolog.Nop())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()
		wg.Wait()

		s.Stop()
		assert.False(t, s.Status().Running)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	s := dispatch.NewScheduler(time.Minute, nopRunner{}, zerolog.Nop())
	s.Stop()
	assert.False(t, s.Status().Running)
}
