package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/stretchr/testify/require"
)

func TestProcessorRunsSubmittedJobs(t *testing.T) {
	p := NewProcessor(slog.Disabled, 16, 4)
	p.Start()
	defer p.Stop()

	var count int64
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		p.Submit(Job{GameID: "g1", Run: func() {
			atomic.AddInt64(&count, 1)
			wg.Done()
		}})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not complete in time")
	}
	require.EqualValues(t, 10, atomic.LoadInt64(&count))
}

func TestProcessorRecoversFromPanic(t *testing.T) {
	p := NewProcessor(slog.Disabled, 4, 1)
	p.Start()
	defer p.Stop()

	var ran int64
	p.Submit(Job{GameID: "g1", Run: func() { panic("boom") }})
	p.Submit(Job{GameID: "g1", Run: func() { atomic.AddInt64(&ran, 1) }})

	require.Eventually(t, func() bool { return atomic.LoadInt64(&ran) == 1 }, time.Second, 5*time.Millisecond)
}

func TestProcessorDropsJobsWhenNotStarted(t *testing.T) {
	p := NewProcessor(slog.Disabled, 4, 1)
	var ran int64
	p.Submit(Job{GameID: "g1", Run: func() { atomic.AddInt64(&ran, 1) }})
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt64(&ran))
}

func TestProcessorStopIsIdempotent(t *testing.T) {
	p := NewProcessor(slog.Disabled, 4, 1)
	p.Start()
	p.Stop()
	require.NotPanics(t, func() { p.Stop() })
}
