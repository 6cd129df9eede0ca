package alert

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsSubmittedJobs(t *testing.T) {
	d := NewDispatcher(2, 16)
	defer d.Close(time.Second)

	var ran atomic.Int32
	done := make(chan struct{})
	ok := d.Submit(func(ctx context.Context) {
		ran.Add(1)
		close(done)
	})
	if !ok {
		t.Fatal("submit to an empty queue was rejected")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	if ran.Load() != 1 {
		t.Fatalf("job ran %d times", ran.Load())
	}
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(1, 1)
	defer d.Close(time.Second)

	block := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	// Occupy the single worker.
	d.Submit(func(ctx context.Context) {
		defer wg.Done()
		<-block
	})
	// Give the worker time to pick up the first job, then fill the queue.
	time.Sleep(50 * time.Millisecond)
	d.Submit(func(ctx context.Context) {})

	// Queue of one is now full; the next submit must not block.
	accepted := d.Submit(func(ctx context.Context) {})
	if accepted {
		t.Error("expected submit to report a drop on a full queue")
	}

	close(block)
	wg.Wait()
}

func TestDispatcherCloseDrainsQueuedWork(t *testing.T) {
	d := NewDispatcher(1, 16)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		d.Submit(func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		})
	}

	d.Close(2 * time.Second)
	if got := ran.Load(); got != 5 {
		t.Fatalf("close drained %d of 5 jobs", got)
	}

	// Submits after close are rejected, not panicking on a closed channel.
	if d.Submit(func(ctx context.Context) {}) {
		t.Error("submit after close was accepted")
	}
}

func TestDispatcherCloseTimeoutAbandonsStuckWork(t *testing.T) {
	d := NewDispatcher(1, 16)

	release := make(chan struct{})
	defer close(release)
	d.Submit(func(ctx context.Context) { <-release })

	start := time.Now()
	d.Close(50 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("close did not respect its timeout, took %v", elapsed)
	}
}
