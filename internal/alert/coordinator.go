package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/edgesentinel/alertgate/internal/detect"
	"github.com/edgesentinel/alertgate/internal/events"
	"github.com/edgesentinel/alertgate/internal/monitoring"
	"github.com/edgesentinel/alertgate/internal/notify"
	"github.com/edgesentinel/alertgate/internal/snapshot"
	"github.com/edgesentinel/alertgate/internal/stats"
	"github.com/edgesentinel/alertgate/internal/timeutil"
	"github.com/edgesentinel/alertgate/internal/video"
)

// CooldownPolicy maps class names to their minimum inter-alert spacing, with
// one centralized default for unlisted classes.
type CooldownPolicy struct {
	PerClass map[string]time.Duration
	Default  time.Duration
}

// For returns the cooldown for class.
func (p CooldownPolicy) For(class string) time.Duration {
	if d, ok := p.PerClass[class]; ok {
		return d
	}
	if p.Default > 0 {
		return p.Default
	}
	return 60 * time.Second
}

// Coordinator applies per-class cooldowns to fresh triggers and hands
// eligible ones to the dispatcher. The cooldown stamp is updated
// synchronously on the calling (tick) goroutine before the job is submitted,
// so near-simultaneous triggers for one class cannot both pass the check.
type Coordinator struct {
	clock      timeutil.Clock
	policy     CooldownPolicy
	dispatcher *Dispatcher
	snapshots  *snapshot.Writer
	saveImages bool
	notifier   notify.Notifier
	store      *events.Store
	publisher  *stats.Publisher
	tracker    *stats.Tracker

	lastAlert map[string]time.Time
}

// Config wires a Coordinator.
type Config struct {
	Clock      timeutil.Clock
	Policy     CooldownPolicy
	Dispatcher *Dispatcher
	Snapshots  *snapshot.Writer
	SaveImages bool
	Notifier   notify.Notifier
	Store      *events.Store
	Publisher  *stats.Publisher
	Tracker    *stats.Tracker
}

// NewCoordinator creates a coordinator. Clock and Notifier default to the
// real clock and the discarding notifier.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	return &Coordinator{
		clock:      cfg.Clock,
		policy:     cfg.Policy,
		dispatcher: cfg.Dispatcher,
		snapshots:  cfg.Snapshots,
		saveImages: cfg.SaveImages,
		notifier:   cfg.Notifier,
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		tracker:    cfg.Tracker,
		lastAlert:  make(map[string]time.Time),
	}
}

// Consider is called with a freshly triggered class and this tick's filtered
// detections. Inside the cooldown window the trigger is silently dropped —
// not queued, not retried; the next corroborated trigger after expiry fires
// instead. Returns whether a dispatch was initiated, in which case the
// caller must reset the class's voting window.
func (c *Coordinator) Consider(class string, detections []detect.Detection, frame *video.Frame, frameNumber int64, zone string) bool {
	now := c.clock.Now()
	if last, ok := c.lastAlert[class]; ok {
		if now.Sub(last) < c.policy.For(class) {
			return false
		}
	}

	classDetections := lo.Filter(detections, func(d detect.Detection, _ int) bool {
		return d.ClassName == class
	})
	if len(classDetections) == 0 {
		return false
	}
	best := lo.MaxBy(classDetections, func(a, b detect.Detection) bool {
		return a.Confidence > b.Confidence
	})

	frameCopy := frame.Clone()
	timestamp := now.UTC().Format(events.TimestampFormat)
	accepted := c.dispatcher.Submit(func(ctx context.Context) {
		c.deliver(ctx, best, classDetections, frameCopy, frameNumber, zone, timestamp)
	})
	if !accepted {
		monitoring.Logf("alert: %s trigger at frame %d not dispatched (queue full)", class, frameNumber)
		return false
	}
	// Stamp synchronously, still on the tick goroutine: the update must not
	// ride along in the deferred job, and a dropped job must not burn the
	// class's window.
	c.lastAlert[class] = now
	if c.tracker != nil {
		c.tracker.RecordAlert()
	}
	monitoring.Logf("alert: dispatching %s (%.2f) at frame %d", class, best.Confidence, frameNumber)
	return true
}

// deliver runs on a dispatcher worker: snapshot, durable event record, then
// notification. The event is recorded at dispatch initiation; a failed
// delivery afterwards is a log line, not a retry.
func (c *Coordinator) deliver(ctx context.Context, best detect.Detection, detections []detect.Detection, frame *video.Frame, frameNumber int64, zone, timestamp string) {
	snapshotPath := ""
	if c.saveImages {
		path, err := c.snapshots.Save(frame, detections, best.ClassName, frameNumber)
		switch {
		case err == snapshot.ErrNotConfigured:
			monitoring.Logf("alert: snapshot requested but no directory configured, skipping")
		case err != nil:
			monitoring.Logf("alert: snapshot save failed: %v", err)
		default:
			snapshotPath = path
		}
	}

	if c.store != nil {
		_, inserted, err := c.store.Insert(events.Event{
			Timestamp:    timestamp,
			ClassName:    best.ClassName,
			Confidence:   best.Confidence,
			FrameNumber:  frameNumber,
			Zone:         zone,
			SnapshotPath: snapshotPath,
		})
		if err != nil {
			monitoring.Logf("alert: event insert failed: %v", err)
		} else if !inserted {
			monitoring.Logf("alert: duplicate event for %s at frame %d ignored", best.ClassName, frameNumber)
		}
	}

	text := fmt.Sprintf("Alert: %s %.2f at %s", best.ClassName, best.Confidence, timestamp)
	if !c.notifier.Notify(ctx, text, snapshotPath) {
		monitoring.Logf("alert: notification for %s at frame %d not delivered", best.ClassName, frameNumber)
	}

	if c.publisher != nil {
		c.publisher.PublishEvent(stats.EventSummary{
			ClassName:   best.ClassName,
			Confidence:  best.Confidence,
			Timestamp:   timestamp,
			FrameNumber: frameNumber,
			Zone:        zone,
		})
	}
}
