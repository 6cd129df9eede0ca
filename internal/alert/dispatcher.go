// Package alert turns corroborated detection triggers into at-most-one
// notification per class per cooldown window, and runs the slow delivery work
// (snapshot write, network notification, store insert) off the hot path on a
// small bounded worker pool.
package alert

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgesentinel/alertgate/internal/monitoring"
)

// Job is one queued alert delivery. The correlation ID ties the submit log
// line to the worker's outcome log lines.
type Job struct {
	ID  string
	Run func(ctx context.Context)
}

// Dispatcher is a submit-and-forget bounded worker pool. The tick loop never
// waits on it: a full queue drops the job with a log line, because alerting
// is best-effort by design.
type Dispatcher struct {
	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts workers goroutines consuming a queue of queueSize.
// Zero values select 2 workers and a queue of 16.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	d := &Dispatcher{jobs: make(chan Job, queueSize)}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		// Each job gets its own deadline so one stuck notification cannot
		// wedge a worker past shutdown.
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		job.Run(ctx)
		cancel()
	}
}

// Submit enqueues a delivery job without blocking and reports whether it was
// accepted.
func (d *Dispatcher) Submit(run func(ctx context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	job := Job{ID: uuid.NewString(), Run: run}
	select {
	case d.jobs <- job:
		return true
	default:
		monitoring.Logf("alert: dispatch queue full, dropping job %s", job.ID)
		return false
	}
}

// Close stops accepting jobs and waits for queued work to drain, bounded by
// timeout. In-flight deliveries past the deadline are abandoned.
func (d *Dispatcher) Close(timeout time.Duration) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		monitoring.Logf("alert: dispatcher drain timed out, abandoning in-flight work")
	}
}
