// Package capture owns the camera-facing half of the pipeline: a worker that
// pulls frames from a FrameSource in a tight loop, and a single-slot
// latest-wins hand-off buffer between that worker and the pipeline tick loop.
package capture

import (
	"sync"
	"time"

	"github.com/edgesentinel/alertgate/internal/video"
)

// FrameSlot is a single-slot, versioned hand-off buffer. Each publish
// replaces the current frame and bumps the sequence number; slow readers skip
// stale frames instead of queueing them. The critical section is a pointer
// swap, never a pixel copy, so the publisher is never blocked by a reader.
type FrameSlot struct {
	mu         sync.Mutex
	frame      *video.Frame
	seq        uint64
	capturedAt time.Time
}

// NewFrameSlot returns an empty slot at sequence zero.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{}
}

// Publish replaces the slot contents and increments the sequence number.
func (s *FrameSlot) Publish(frame *video.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.seq++
	s.capturedAt = frame.CapturedAt
}

// Poll returns the current slot state. Callers compare the returned sequence
// with the last one they processed; an equal value means no new frame and the
// frame must not be reprocessed. A reader racing a publish observes either
// the prior or the new triple, never a mix.
func (s *FrameSlot) Poll(lastSeen uint64) (*video.Frame, uint64, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == lastSeen {
		return nil, s.seq, s.capturedAt
	}
	return s.frame, s.seq, s.capturedAt
}

// Seq returns the current sequence number.
func (s *FrameSlot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
