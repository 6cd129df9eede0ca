// Package stats assembles the read-only pipeline snapshots consumed by the
// dashboard boundary and fans them out to subscribers. The pipeline never
// blocks on whether anything consumes them.
package stats

import (
	"sync"
	"time"

	"github.com/edgesentinel/alertgate/internal/motion"
	"github.com/edgesentinel/alertgate/internal/timeutil"
	"github.com/edgesentinel/alertgate/internal/vote"
)

// Snapshot is one tick's read-only view of the pipeline.
type Snapshot struct {
	FrameNumber     int64                       `json:"frame_number"`
	FPS             float64                     `json:"fps"`
	UptimeSeconds   int64                       `json:"uptime_seconds"`
	TotalDetections int64                       `json:"total_detections"`
	AlertsSent      int64                       `json:"alerts_sent"`
	Motion          motion.Info                 `json:"motion"`
	Voting          map[string]vote.ClassStatus `json:"voting"`
}

// EventSummary is the per-alert record pushed to the dashboard boundary when
// a dispatch is initiated.
type EventSummary struct {
	ClassName   string  `json:"class_name"`
	Confidence  float64 `json:"confidence"`
	Timestamp   string  `json:"timestamp"`
	FrameNumber int64   `json:"frame_number"`
	Zone        string  `json:"zone"`
}

// Tracker accumulates pipeline counters and derives the FPS estimate from
// one-second windows, like the original dashboard loop did.
type Tracker struct {
	mu    sync.Mutex
	clock timeutil.Clock

	start        time.Time
	frames       int64
	detections   int64
	alerts       int64
	fps          float64
	windowStart  time.Time
	windowFrames int
	latest       Snapshot
}

// NewTracker creates a tracker using clock for all time arithmetic.
func NewTracker(clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	now := clock.Now()
	return &Tracker{clock: clock, start: now, windowStart: now}
}

// Tick records one processed frame and returns the refreshed snapshot.
func (t *Tracker) Tick(m motion.Info, detections int, voting map[string]vote.ClassStatus) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.frames++
	t.detections += int64(detections)
	t.windowFrames++
	if elapsed := now.Sub(t.windowStart); elapsed >= time.Second {
		t.fps = float64(t.windowFrames) / elapsed.Seconds()
		t.windowFrames = 0
		t.windowStart = now
	}

	t.latest = Snapshot{
		FrameNumber:     t.frames,
		FPS:             t.fps,
		UptimeSeconds:   int64(now.Sub(t.start).Seconds()),
		TotalDetections: t.detections,
		AlertsSent:      t.alerts,
		Motion:          m,
		Voting:          voting,
	}
	return t.latest
}

// RecordAlert bumps the delivered-alert counter.
func (t *Tracker) RecordAlert() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.alerts++
}

// Latest returns the most recent snapshot.
func (t *Tracker) Latest() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// FrameNumber returns the number of frames processed so far.
func (t *Tracker) FrameNumber() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}
