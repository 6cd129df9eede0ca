// Package detect defines the object-detection contract. The model itself is
// an external capability: something that maps a frame to a list of
// detections. The shipped implementation talks to an inference service over
// HTTP; tests use scripted detectors.
package detect

import (
	"context"
	"time"

	"github.com/edgesentinel/alertgate/internal/video"
)

// Detection is one detected object in one frame. Immutable; owned by the
// pipeline iteration that produced it and not retained beyond the event it
// contributes to.
type Detection struct {
	ClassID    int       `json:"class_id"`
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"confidence"`
	// Box is the bounding box in pixel space: x1, y1, x2, y2.
	Box       [4]int    `json:"box"`
	Timestamp time.Time `json:"timestamp"`
}

// Center returns the bounding-box center in pixel coordinates.
func (d Detection) Center() (x, y int) {
	return (d.Box[0] + d.Box[2]) / 2, (d.Box[1] + d.Box[3]) / 2
}

// Detector maps a frame to detections. Order is confidence-independent;
// callers needing "the best" detection sort or scan themselves. Detect must
// be safe to call repeatedly and quickly; model warmup is the collaborator's
// problem.
type Detector interface {
	Detect(ctx context.Context, frame *video.Frame) ([]Detection, error)
}

// Func adapts a function to the Detector interface. Used by tests.
type Func func(ctx context.Context, frame *video.Frame) ([]Detection, error)

// Detect implements Detector.
func (f Func) Detect(ctx context.Context, frame *video.Frame) ([]Detection, error) {
	return f(ctx, frame)
}
