package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edgesentinel/alertgate/internal/alert"
	"github.com/edgesentinel/alertgate/internal/capture"
	"github.com/edgesentinel/alertgate/internal/detect"
	"github.com/edgesentinel/alertgate/internal/motion"
	"github.com/edgesentinel/alertgate/internal/roi"
	"github.com/edgesentinel/alertgate/internal/stats"
	"github.com/edgesentinel/alertgate/internal/timeutil"
	"github.com/edgesentinel/alertgate/internal/video"
	"github.com/edgesentinel/alertgate/internal/vote"
)

// scriptedDetector returns one canned result set per call.
type scriptedDetector struct {
	mu      sync.Mutex
	results [][]detect.Detection
	calls   int
}

func (d *scriptedDetector) Detect(ctx context.Context, frame *video.Frame) ([]detect.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.results) == 0 {
		return nil, nil
	}
	r := d.results[0]
	d.results = d.results[1:]
	return r, nil
}

type notifyCapture struct {
	mu    sync.Mutex
	texts []string
	ch    chan string
}

func newNotifyCapture() *notifyCapture {
	return &notifyCapture{ch: make(chan string, 16)}
}

func (n *notifyCapture) Notify(ctx context.Context, text, imagePath string) bool {
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()
	n.ch <- text
	return true
}

func cat(conf float64) []detect.Detection {
	return []detect.Detection{{ClassName: "cat", Confidence: conf, Box: [4]int{10, 10, 40, 40}}}
}

// harness wires a pipeline whose stages are all real except the detector and
// notifier.
type harness struct {
	pipe       *Pipeline
	voter      *vote.Voter
	tracker    *stats.Tracker
	notifier   *notifyCapture
	dispatcher *alert.Dispatcher
	clock      *timeutil.MockClock
}

func newHarness(t *testing.T, detector detect.Detector, voteParams map[string]vote.ClassParams, params Params) *harness {
	t.Helper()

	clock := timeutil.NewMockClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	notifier := newNotifyCapture()
	dispatcher := alert.NewDispatcher(1, 16)
	t.Cleanup(func() { dispatcher.Close(time.Second) })

	zones, err := roi.NewFilter(roi.Config{Enabled: false})
	if err != nil {
		t.Fatalf("roi filter: %v", err)
	}
	voter := vote.NewVoter(voteParams)
	tracker := stats.NewTracker(clock)
	publisher := stats.NewPublisher()
	t.Cleanup(publisher.Close)

	coordinator := alert.NewCoordinator(alert.Config{
		Clock:      clock,
		Policy:     alert.CooldownPolicy{Default: 60 * time.Second},
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Publisher:  publisher,
		Tracker:    tracker,
	})

	pipe := New(params, Deps{
		Slot:        capture.NewFrameSlot(),
		Gate:        motion.NewGate(motion.Params{Downscale: 1, MinContourArea: 16}),
		Detector:    detector,
		Zones:       zones,
		Voter:       voter,
		Coordinator: coordinator,
		Tracker:     tracker,
		Publisher:   publisher,
	})
	return &harness{
		pipe:       pipe,
		voter:      voter,
		tracker:    tracker,
		notifier:   notifier,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// tick feeds one frame through the pipeline the way Run does.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	frame := video.NewFrame(64, 48, 1)
	h.pipe.frameNumber++
	h.pipe.step(context.Background(), frame)
}

func (h *harness) waitForNotification(t *testing.T) string {
	t.Helper()
	select {
	case text := <-h.notifier.ch:
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered")
		return ""
	}
}

func TestPipelineCatScenario(t *testing.T) {
	// Three consecutive cat sightings at confidence 0.6, 0.8, 0.7 with
	// 2-of-3 voting and a 60s cooldown: exactly one alert, carrying the
	// strongest detection of the triggering tick.
	detector := &scriptedDetector{results: [][]detect.Detection{
		cat(0.6), cat(0.8), cat(0.7),
	}}
	h := newHarness(t, detector, map[string]vote.ClassParams{
		"cat": {WindowSize: 3, VotesRequired: 2},
	}, Params{DetectionEnabled: true, SkipWhenNoMotion: false})

	h.tick(t) // 0.6: one vote, no trigger
	h.tick(t) // 0.8: second vote, trigger + dispatch

	text := h.waitForNotification(t)
	if text != "Alert: cat 0.80 at 2026-08-01T12:00:00Z" {
		t.Errorf("notification = %q", text)
	}

	// The dispatched alert consumed the voting window.
	if status := h.voter.Status()["cat"]; status.HistoryLength != 0 {
		t.Fatalf("window not reset after dispatch: %+v", status)
	}

	h.tick(t) // 0.7: only one vote in the fresh window, no trigger

	if got := len(h.notifier.texts); got != 1 {
		t.Fatalf("expected exactly one alert, got %d", got)
	}
	if detector.calls != 3 {
		t.Errorf("detector calls = %d, want 3", detector.calls)
	}
	if snap := h.tracker.Latest(); snap.AlertsSent != 1 || snap.FrameNumber != 3 {
		t.Errorf("tracker snapshot %+v", snap)
	}
}

func TestPipelineCooldownSuppressesSecondTrigger(t *testing.T) {
	detector := &scriptedDetector{results: [][]detect.Detection{
		cat(0.9), cat(0.9), cat(0.9), cat(0.9),
	}}
	h := newHarness(t, detector, map[string]vote.ClassParams{
		"cat": {WindowSize: 2, VotesRequired: 2},
	}, Params{DetectionEnabled: true, SkipWhenNoMotion: false})

	h.tick(t)
	h.tick(t) // trigger + dispatch
	h.waitForNotification(t)

	h.tick(t)
	h.tick(t) // re-trigger inside the cooldown window, must be dropped

	time.Sleep(50 * time.Millisecond)
	h.notifier.mu.Lock()
	count := len(h.notifier.texts)
	h.notifier.mu.Unlock()
	if count != 1 {
		t.Fatalf("cooldown leak: %d alerts", count)
	}

	// Window is NOT reset when cooldown suppresses the dispatch, so the
	// next eligible moment can fire immediately.
	if status := h.voter.Status()["cat"]; status.CurrentVotes != 2 {
		t.Errorf("voting state after suppressed trigger: %+v", status)
	}

	h.clock.Advance(61 * time.Second)
	detector.mu.Lock()
	detector.results = [][]detect.Detection{cat(0.95)}
	detector.mu.Unlock()
	h.tick(t)
	h.waitForNotification(t)
}

func TestPipelineSkipDisabledRunsDetectorEveryFrame(t *testing.T) {
	// Motion gating off, no periodic fallback: the detector must run on
	// every tick even when the scene is completely still.
	calls := 0
	detector := detect.Func(func(ctx context.Context, f *video.Frame) ([]detect.Detection, error) {
		calls++
		return nil, nil
	})
	h := newHarness(t, detector, map[string]vote.ClassParams{
		"cat": {WindowSize: 3, VotesRequired: 2},
	}, Params{DetectionEnabled: true, SkipWhenNoMotion: false, PeriodicInterval: 0})

	for i := 0; i < 10; i++ {
		h.tick(t)
	}
	if calls != 10 {
		t.Fatalf("detector calls = %d over 10 motionless frames, want 10", calls)
	}
}

func TestPipelineSkipEnabledGatesDetectorOnMotion(t *testing.T) {
	// Motion gating on, no periodic fallback: motionless frames never reach
	// the detector.
	calls := 0
	detector := detect.Func(func(ctx context.Context, f *video.Frame) ([]detect.Detection, error) {
		calls++
		return nil, nil
	})
	h := newHarness(t, detector, map[string]vote.ClassParams{
		"cat": {WindowSize: 3, VotesRequired: 2},
	}, Params{DetectionEnabled: true, SkipWhenNoMotion: true, PeriodicInterval: 0})

	for i := 0; i < 10; i++ {
		h.tick(t)
	}
	if calls != 0 {
		t.Fatalf("detector calls = %d over 10 motionless frames, want 0", calls)
	}
}

func TestPipelineDetectorErrorMeansNoDetections(t *testing.T) {
	calls := 0
	detector := detect.Func(func(ctx context.Context, f *video.Frame) ([]detect.Detection, error) {
		calls++
		return nil, context.DeadlineExceeded
	})
	h := newHarness(t, detector, map[string]vote.ClassParams{
		"cat": {WindowSize: 3, VotesRequired: 1},
	}, Params{DetectionEnabled: true, SkipWhenNoMotion: false})

	h.tick(t)
	h.tick(t)

	if calls != 2 {
		t.Fatalf("detector calls = %d", calls)
	}
	// Errors count as absence: the window advances with negatives.
	status := h.voter.Status()["cat"]
	if status.HistoryLength != 2 || status.CurrentVotes != 0 {
		t.Errorf("voting state after detector errors: %+v", status)
	}
}

func TestPipelineRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, &scriptedDetector{}, map[string]vote.ClassParams{
		"cat": {WindowSize: 3, VotesRequired: 2},
	}, Params{DetectionEnabled: true, SkipWhenNoMotion: false})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.pipe.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancellation")
	}
}
