package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/edgesentinel/alertgate/internal/monitoring"
	"github.com/edgesentinel/alertgate/internal/video"
)

// Worker pulls frames from a FrameSource and publishes each one into a
// FrameSlot. A failed initial connect is terminal; once streaming, every
// failed read triggers a reconnect with a fixed backoff, indefinitely, so a
// camera-side outage of any length is survived. Cancellation is cooperative:
// the context is checked once per loop iteration and sources bound their
// reads with I/O deadlines so no read blocks past shutdown.
type Worker struct {
	source  video.FrameSource
	slot    *FrameSlot
	backoff time.Duration

	frames     atomic.Uint64
	reconnects atomic.Uint64
}

// NewWorker creates a capture worker publishing into slot. backoff is the
// fixed pause between reconnect attempts; zero selects a 2s default matching
// typical camera recovery times.
func NewWorker(source video.FrameSource, slot *FrameSlot, backoff time.Duration) *Worker {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Worker{source: source, slot: slot, backoff: backoff}
}

// Frames returns the number of frames published so far.
func (w *Worker) Frames() uint64 { return w.frames.Load() }

// Reconnects returns the number of reconnect attempts made so far.
func (w *Worker) Reconnects() uint64 { return w.reconnects.Load() }

// Run connects and streams until ctx is cancelled. It returns a non-nil
// error only for a startup connect failure; the orchestrator treats that as
// fatal, while steady-state reconnect churn stays inside the loop.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.source.Connect(ctx); err != nil {
		return fmt.Errorf("initial camera connect failed: %w", err)
	}
	defer w.source.Release()
	monitoring.Logf("capture: connected, streaming")

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("capture: worker stopped")
			return nil
		default:
		}

		frame, err := w.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				monitoring.Logf("capture: worker stopped")
				return nil
			}
			monitoring.Logf("capture: read failed (%v), reconnecting", err)
			w.reconnect(ctx)
			continue
		}
		if err := frame.Validate(); err != nil {
			monitoring.Logf("capture: dropping bad frame: %v", err)
			continue
		}

		// Publish a clone so the source may reuse its buffers without
		// aliasing the frame the pipeline is processing.
		w.slot.Publish(frame.Clone())
		w.frames.Add(1)
	}
}

// reconnect retries until the source comes back or ctx is cancelled. Failed
// attempts never touch the slot, so the sequence number only moves for real
// frames.
func (w *Worker) reconnect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff):
		}
		w.reconnects.Add(1)
		if err := w.source.Reconnect(ctx); err != nil {
			monitoring.Logf("capture: reconnect failed (%v), retrying", err)
			continue
		}
		monitoring.Logf("capture: reconnected")
		return
	}
}
