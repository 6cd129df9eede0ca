// Package snapshot renders and persists annotated alert snapshots: the
// triggering frame with detection boxes and labels burned in. Annotation
// always works on a copy; the pipeline's frame is never touched.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"path/filepath"
	"time"

	"github.com/edgesentinel/alertgate/internal/detect"
	"github.com/edgesentinel/alertgate/internal/fsutil"
	"github.com/edgesentinel/alertgate/internal/video"
)

// ErrNotConfigured is returned when snapshot persistence is requested but no
// directory is configured. The caller downgrades this to a warning and
// continues without a snapshot.
var ErrNotConfigured = errors.New("snapshot directory not configured")

var boxColor = color.RGBA{0, 255, 0, 255}

// Writer persists annotated snapshots under a configured directory.
type Writer struct {
	dir     string
	quality int
	fs      fsutil.FileSystem
}

// NewWriter creates a snapshot writer. A nil fs selects the OS filesystem.
func NewWriter(dir string, quality int, fs fsutil.FileSystem) *Writer {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Writer{dir: dir, quality: quality, fs: fs}
}

// Save renders the frame with detections drawn on a copy and writes it as
// JPEG, returning the file path. The directory is created when missing.
func (w *Writer) Save(frame *video.Frame, detections []detect.Detection, class string, frameNumber int64) (string, error) {
	if w.dir == "" {
		return "", ErrNotConfigured
	}
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_frame_%d.jpg",
		class, time.Now().Format("20060102_150405"), frameNumber)
	path := filepath.Join(w.dir, name)

	img := Annotate(frame, detections)
	f, err := w.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return path, nil
}

// Annotate returns a copy of the frame with each detection's bounding box
// and a short label strip drawn in.
func Annotate(frame *video.Frame, detections []detect.Detection) image.Image {
	img := frame.ToImage().(*image.RGBA)
	for _, d := range detections {
		drawRect(img, d.Box[0], d.Box[1], d.Box[2], d.Box[3])
		// A filled strip above the box stands in for a text label; burning
		// readable glyphs needs a font rasterizer this core does not carry.
		labelH := 4
		strip := image.Rect(d.Box[0], d.Box[1]-labelH, d.Box[0]+40, d.Box[1])
		draw.Draw(img, strip.Intersect(img.Bounds()), &image.Uniform{boxColor}, image.Point{}, draw.Src)
	}
	return img
}

// drawRect draws a 2px rectangle outline clipped to the image bounds.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int) {
	const thickness = 2
	b := img.Bounds()
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setIfInside(img, b, x, y1+t)
			setIfInside(img, b, x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setIfInside(img, b, x1+t, y)
			setIfInside(img, b, x2-t, y)
		}
	}
}

func setIfInside(img *image.RGBA, b image.Rectangle, x, y int) {
	if image.Pt(x, y).In(b) {
		img.SetRGBA(x, y, boxColor)
	}
}
