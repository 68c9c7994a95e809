package callsync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_TriggerWhileRunningIsNoop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	s := NewScheduler(func(ctx context.Context) CycleReport {
		runs.Add(1)
		close(started)
		<-release
		return CycleReport{}
	}, time.Minute, nil)

	require.True(t, s.TriggerAsync(context.Background()))
	<-started

	assert.Equal(t, StateRunning, s.State())
	assert.False(t, s.Trigger(context.Background()))
	assert.False(t, s.TriggerAsync(context.Background()))

	close(release)
	require.Eventually(t, func() bool { return s.State() == StateIdle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_PanicIsContained(t *testing.T) {
	var reports []CycleReport
	s := NewScheduler(func(ctx context.Context) CycleReport {
		panic("boom")
	}, time.Minute, func(r CycleReport) { reports = append(reports, r) })

	assert.True(t, s.Trigger(context.Background()))
	assert.Equal(t, StateIdle, s.State())
	require.Len(t, reports, 1)
	assert.Equal(t, "boom", reports[0].Panic)

	// Scheduler stays usable.
	assert.True(t, s.Trigger(context.Background()))
}

func TestScheduler_ReportsEachCycle(t *testing.T) {
	var got []string
	s := NewScheduler(func(ctx context.Context) CycleReport {
		return CycleReport{ID: "c1", New: 2}
	}, time.Minute, func(r CycleReport) { got = append(got, r.ID) })

	s.Trigger(context.Background())
	assert.Equal(t, []string{"c1"}, got)
}

func TestScheduler_RunFiresImmediatelyAndStops(t *testing.T) {
	var (
		mu   sync.Mutex
		runs int
	)
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(func(context.Context) CycleReport {
		mu.Lock()
		runs++
		n := runs
		mu.Unlock()
		if n == 3 {
			cancel()
		}
		return CycleReport{}
	}, 10*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, runs)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
}
