package stats

import (
	"testing"
	"time"

	"github.com/edgesentinel/alertgate/internal/motion"
	"github.com/edgesentinel/alertgate/internal/timeutil"
	"github.com/edgesentinel/alertgate/internal/vote"
)

func TestTrackerCountsFramesAndDetections(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	tr := NewTracker(clock)

	tr.Tick(motion.Info{}, 2, nil)
	snap := tr.Tick(motion.Info{Detected: true, Area: 600, Contours: 1}, 3, nil)

	if snap.FrameNumber != 2 {
		t.Errorf("frame number = %d, want 2", snap.FrameNumber)
	}
	if snap.TotalDetections != 5 {
		t.Errorf("total detections = %d, want 5", snap.TotalDetections)
	}
	if !snap.Motion.Detected || snap.Motion.Area != 600 {
		t.Errorf("motion info not carried into snapshot: %+v", snap.Motion)
	}
}

func TestTrackerDerivesFPSFromOneSecondWindows(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	tr := NewTracker(clock)

	// 10 frames over exactly one second.
	for i := 0; i < 9; i++ {
		clock.Advance(100 * time.Millisecond)
		tr.Tick(motion.Info{}, 0, nil)
	}
	clock.Advance(100 * time.Millisecond)
	snap := tr.Tick(motion.Info{}, 0, nil)

	if snap.FPS < 9 || snap.FPS > 11 {
		t.Errorf("fps = %v, want about 10", snap.FPS)
	}
	if snap.UptimeSeconds != 1 {
		t.Errorf("uptime = %d, want 1", snap.UptimeSeconds)
	}
}

func TestTrackerRecordAlert(t *testing.T) {
	tr := NewTracker(timeutil.NewMockClock(time.Now()))
	tr.RecordAlert()
	tr.RecordAlert()
	snap := tr.Tick(motion.Info{}, 0, nil)
	if snap.AlertsSent != 2 {
		t.Errorf("alerts sent = %d, want 2", snap.AlertsSent)
	}
}

func TestTrackerSnapshotCarriesVotingStatus(t *testing.T) {
	tr := NewTracker(timeutil.NewMockClock(time.Now()))
	voting := map[string]vote.ClassStatus{
		"cat": {WindowSize: 3, VotesRequired: 2, CurrentVotes: 1},
	}
	snap := tr.Tick(motion.Info{}, 0, voting)
	if snap.Voting["cat"].CurrentVotes != 1 {
		t.Errorf("voting status not carried: %+v", snap.Voting)
	}
	if got := tr.Latest(); got.Voting["cat"].WindowSize != 3 {
		t.Errorf("latest snapshot mismatch: %+v", got)
	}
}
