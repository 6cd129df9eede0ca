// Package pipeline runs the per-frame processing loop: poll the capture slot
// for the newest frame, gate on motion, run the detector when the gate (or
// the periodic fallback) says so, filter by zones, vote, and hand corroborated
// triggers to the alert coordinator. One goroutine owns the whole loop; the
// stages share state through it, not through locks.
package pipeline

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/edgesentinel/alertgate/internal/alert"
	"github.com/edgesentinel/alertgate/internal/capture"
	"github.com/edgesentinel/alertgate/internal/detect"
	"github.com/edgesentinel/alertgate/internal/monitoring"
	"github.com/edgesentinel/alertgate/internal/motion"
	"github.com/edgesentinel/alertgate/internal/roi"
	"github.com/edgesentinel/alertgate/internal/stats"
	"github.com/edgesentinel/alertgate/internal/video"
	"github.com/edgesentinel/alertgate/internal/vote"
)

// Params tunes the tick loop.
type Params struct {
	// DetectionEnabled gates the detector stage entirely. When false the
	// loop still tracks motion and publishes stats, but never calls the
	// detector and the voter only ever sees negatives.
	DetectionEnabled bool
	// SkipWhenNoMotion gates the detector on the motion pre-filter. When
	// false the detector runs on every frame regardless of motion.
	SkipWhenNoMotion bool
	// PeriodicInterval runs the detector every Nth frame even without
	// motion, catching slow scene changes the background model has already
	// absorbed. Zero disables the fallback.
	PeriodicInterval int64
	// IdleSleep bounds the poll loop when the slot has no new frame [10ms].
	IdleSleep time.Duration
}

func (p Params) withDefaults() Params {
	if p.IdleSleep <= 0 {
		p.IdleSleep = 10 * time.Millisecond
	}
	return p
}

// Pipeline owns one stream's processing loop.
type Pipeline struct {
	params      Params
	slot        *capture.FrameSlot
	gate        *motion.Gate
	detector    detect.Detector
	zones       *roi.Filter
	voter       *vote.Voter
	coordinator *alert.Coordinator
	tracker     *stats.Tracker
	publisher   *stats.Publisher

	lastSeq     uint64
	frameNumber int64
}

// Deps wires a Pipeline.
type Deps struct {
	Slot        *capture.FrameSlot
	Gate        *motion.Gate
	Detector    detect.Detector
	Zones       *roi.Filter
	Voter       *vote.Voter
	Coordinator *alert.Coordinator
	Tracker     *stats.Tracker
	Publisher   *stats.Publisher
}

// New creates a pipeline over an already-started capture slot.
func New(params Params, deps Deps) *Pipeline {
	return &Pipeline{
		params:      params.withDefaults(),
		slot:        deps.Slot,
		gate:        deps.Gate,
		detector:    deps.Detector,
		zones:       deps.Zones,
		voter:       deps.Voter,
		coordinator: deps.Coordinator,
		tracker:     deps.Tracker,
		publisher:   deps.Publisher,
	}
}

// Run processes frames until ctx is cancelled. It only ever returns ctx's
// error: per-frame failures (detector down, snapshot full) degrade the stream,
// they do not stop it.
func (p *Pipeline) Run(ctx context.Context) error {
	monitoring.Logf("pipeline: started (detection=%v, skip_no_motion=%v, periodic=%d)",
		p.params.DetectionEnabled, p.params.SkipWhenNoMotion, p.params.PeriodicInterval)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("pipeline: stopped after %d frames", p.frameNumber)
			return ctx.Err()
		default:
		}

		frame, seq, _ := p.slot.Poll(p.lastSeq)
		if frame == nil {
			select {
			case <-ctx.Done():
				monitoring.Logf("pipeline: stopped after %d frames", p.frameNumber)
				return ctx.Err()
			case <-time.After(p.params.IdleSleep):
			}
			continue
		}
		p.lastSeq = seq
		p.frameNumber++

		p.step(ctx, frame)
	}
}

// step processes one frame.
func (p *Pipeline) step(ctx context.Context, frame *video.Frame) {
	m := p.gate.Detect(frame)

	detections := p.detectIfDue(ctx, frame, m)
	filtered := p.zones.Filter(detections, frame.Width, frame.Height)

	// The voter sees every tick, detections or not: absence is evidence too.
	triggered := p.voter.Update(filtered)
	for _, class := range triggered {
		zone := p.zoneFor(class, filtered, frame)
		if p.coordinator.Consider(class, filtered, frame, p.frameNumber, zone) {
			// A dispatched alert consumes the evidence; the next one needs a
			// fresh run of corroborating frames.
			p.voter.Reset(class)
		}
	}

	snapshot := p.tracker.Tick(m, len(filtered), p.voter.Status())
	p.publisher.PublishSnapshot(snapshot)
}

// detectIfDue runs the detector when the frame qualifies: motion present,
// motion gating disabled, or the periodic fallback is due. A detector error
// is logged and treated as an empty result so the voting window still
// advances.
func (p *Pipeline) detectIfDue(ctx context.Context, frame *video.Frame, m motion.Info) []detect.Detection {
	if !p.params.DetectionEnabled {
		return nil
	}
	due := m.Detected || !p.params.SkipWhenNoMotion
	if !due && p.params.PeriodicInterval > 0 && p.frameNumber%p.params.PeriodicInterval == 0 {
		due = true
	}
	if !due {
		return nil
	}
	detections, err := p.detector.Detect(ctx, frame)
	if err != nil {
		monitoring.Logf("pipeline: detector error at frame %d: %v", p.frameNumber, err)
		return nil
	}
	return detections
}

// zoneFor labels a trigger with the include zone admitting its strongest
// detection, or "" when zone filtering is off.
func (p *Pipeline) zoneFor(class string, detections []detect.Detection, frame *video.Frame) string {
	classDetections := lo.Filter(detections, func(d detect.Detection, _ int) bool {
		return d.ClassName == class
	})
	if len(classDetections) == 0 {
		return ""
	}
	best := lo.MaxBy(classDetections, func(a, b detect.Detection) bool {
		return a.Confidence > b.Confidence
	})
	return p.zones.AdmittingZone(best, frame.Width, frame.Height)
}
