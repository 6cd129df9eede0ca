package video

import (
	"context"
	"sync"
	"time"
)

// SyntheticSource generates frames with a bright square orbiting over a flat
// background. It stands in for a camera in dev mode and in tests: the moving
// square exercises the motion gate the same way a real subject would.
//
// FailReads, when set, makes the next N reads fail before the source recovers.
// Tests use this to drive the capture worker's reconnect path.
type SyntheticSource struct {
	Width     int
	Height    int
	FrameRate int // frames per second, minimum 1

	mu        sync.Mutex
	connected bool
	released  bool
	tick      int
	failReads int
	connects  int
}

// NewSyntheticSource creates a synthetic source at the given resolution.
func NewSyntheticSource(width, height, fps int) *SyntheticSource {
	if fps < 1 {
		fps = 1
	}
	return &SyntheticSource{Width: width, Height: height, FrameRate: fps}
}

// FailNextReads schedules the next n reads to return errFailInjected.
func (s *SyntheticSource) FailNextReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = n
}

// Connects reports how many times Connect or Reconnect succeeded.
func (s *SyntheticSource) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *SyntheticSource) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrSourceClosed
	}
	s.connected = true
	s.connects++
	return nil
}

func (s *SyntheticSource) Reconnect(ctx context.Context) error {
	return s.Connect(ctx)
}

func (s *SyntheticSource) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = true
	s.connected = false
	return nil
}

type injectedError struct{}

func (injectedError) Error() string { return "injected read failure" }

// Timeout marks the error as transient so the capture worker reconnects
// rather than treating it as fatal.
func (injectedError) Timeout() bool { return true }

func (s *SyntheticSource) Read(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, ErrSourceClosed
	}
	if !s.connected {
		s.mu.Unlock()
		return nil, injectedError{}
	}
	if s.failReads > 0 {
		s.failReads--
		s.connected = false
		s.mu.Unlock()
		return nil, injectedError{}
	}
	tick := s.tick
	s.tick++
	interval := time.Second / time.Duration(s.FrameRate)
	s.mu.Unlock()

	// Pace the stream; cancellation wins over the frame interval.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(interval):
	}

	return s.render(tick), nil
}

// render draws a 16x16 bright square whose position advances each frame.
func (s *SyntheticSource) render(tick int) *Frame {
	f := NewFrame(s.Width, s.Height, 1)
	for i := range f.Pix {
		f.Pix[i] = 32 // flat dark background
	}
	const side = 16
	span := s.Width - side
	if span < 1 {
		span = 1
	}
	x0 := (tick * 4) % span
	y0 := (s.Height - side) / 2
	for y := y0; y < y0+side && y < s.Height; y++ {
		for x := x0; x < x0+side && x < s.Width; x++ {
			f.Pix[y*s.Width+x] = 230
		}
	}
	f.CapturedAt = time.Now()
	return f
}
