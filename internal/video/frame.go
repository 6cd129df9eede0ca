// Package video defines the frame model and the frame source contract used by
// the capture layer. Frames are raw interleaved pixel buffers; once captured
// they are treated as immutable and every transformation produces a copy.
package video

import (
	"fmt"
	"image"
	"image/color"
	"time"
)

// Frame is a single captured video frame. Pix is row-major with Channels
// interleaved samples per pixel (1 = grayscale, 3 = RGB). A frame is owned by
// exactly one pipeline stage at a time and must not be mutated in place.
type Frame struct {
	Width      int
	Height     int
	Channels   int
	Pix        []byte
	CapturedAt time.Time
}

// NewFrame allocates a zeroed frame with the given geometry.
func NewFrame(width, height, channels int) *Frame {
	return &Frame{
		Width:      width,
		Height:     height,
		Channels:   channels,
		Pix:        make([]byte, width*height*channels),
		CapturedAt: time.Now(),
	}
}

// Clone returns a deep copy of the frame. The capture worker publishes clones
// so the producer and the pipeline never alias the same pixel buffer.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{
		Width:      f.Width,
		Height:     f.Height,
		Channels:   f.Channels,
		Pix:        pix,
		CapturedAt: f.CapturedAt,
	}
}

// Validate checks the frame geometry against its buffer length.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame geometry %dx%d", f.Width, f.Height)
	}
	if f.Channels != 1 && f.Channels != 3 {
		return fmt.Errorf("unsupported channel count %d", f.Channels)
	}
	if want := f.Width * f.Height * f.Channels; len(f.Pix) != want {
		return fmt.Errorf("pixel buffer length %d, want %d", len(f.Pix), want)
	}
	return nil
}

// Gray returns the luma value at (x, y). For RGB frames this is the BT.601
// integer approximation; for grayscale frames it is the sample itself.
func (f *Frame) Gray(x, y int) byte {
	i := (y*f.Width + x) * f.Channels
	if f.Channels == 1 {
		return f.Pix[i]
	}
	r := int(f.Pix[i])
	g := int(f.Pix[i+1])
	b := int(f.Pix[i+2])
	return byte((299*r + 587*g + 114*b) / 1000)
}

// ToImage converts the frame to a stdlib image for JPEG encoding. The result
// shares no memory with the frame.
func (f *Frame) ToImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := (y*f.Width + x) * f.Channels
			var c color.RGBA
			if f.Channels == 1 {
				v := f.Pix[i]
				c = color.RGBA{v, v, v, 255}
			} else {
				c = color.RGBA{f.Pix[i], f.Pix[i+1], f.Pix[i+2], 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
