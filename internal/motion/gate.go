// Package motion implements the cheap pre-filter that decides whether a frame
// is interesting enough to justify running the object detector. It keeps an
// adaptive per-pixel background model (exponential moving average of the luma
// plus a spread estimate), extracts the confident-foreground mask, cleans it
// with morphological opening and closing, and counts the surviving connected
// regions.
//
// The model is stateful across the stream's lifetime and is owned by an
// explicitly constructed Gate, so independent streams can each run their own.
package motion

import (
	"math"

	"github.com/edgesentinel/alertgate/internal/video"
)

// Info summarizes one gating decision. It is recomputed every frame and does
// not outlive the pipeline iteration that produced it.
type Info struct {
	Detected bool `json:"detected"`
	Area     int  `json:"area"`
	Contours int  `json:"contours"`
}

// Params tunes the gate. Zero values select the defaults in brackets.
type Params struct {
	// Threshold is the minimum luma delta from the background mean for a
	// pixel to count as foreground [25].
	Threshold int
	// MinContourArea is the minimum region area in full-resolution pixels
	// for a region to count as motion [500]. Internally scaled by the
	// square of the downscale factor.
	MinContourArea int
	// LearningRate is the background adaptation rate per frame [0.01].
	LearningRate float64
	// Downscale processes every Nth pixel in each dimension for speed [2].
	Downscale int
}

func (p Params) withDefaults() Params {
	if p.Threshold <= 0 {
		p.Threshold = 25
	}
	if p.MinContourArea <= 0 {
		p.MinContourArea = 500
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.01
	}
	if p.Downscale <= 0 {
		p.Downscale = 2
	}
	return p
}

// cell is one background-model entry: a running mean of the observed luma and
// a running estimate of its spread. A pixel whose observation falls within
// the acceptance band around the mean is background; the band grows with the
// observed spread so noisy regions (foliage, shimmer) do not flap.
type cell struct {
	mean   float32
	spread float32
	seen   uint32
}

// Gate holds the background model for one stream.
type Gate struct {
	params Params

	w, h  int // model resolution (downscaled)
	cells []cell
	fg    []byte // scratch foreground mask, reused across frames
	tmp   []byte // scratch for morphology
	label []int32

	warm bool
}

// NewGate constructs a gate with the given parameters.
func NewGate(params Params) *Gate {
	return &Gate{params: params.withDefaults()}
}

// Reset discards the background model. Called on resolution change.
func (g *Gate) Reset() {
	g.cells = nil
	g.w, g.h = 0, 0
	g.warm = false
}

// Detect updates the background model with frame and reports whether it
// contains motion. The first frame seeds the model and never reports motion.
func (g *Gate) Detect(frame *video.Frame) Info {
	ds := g.params.Downscale
	w := frame.Width / ds
	h := frame.Height / ds
	if w < 1 || h < 1 {
		return Info{}
	}
	if w != g.w || h != g.h {
		// Resolution changed (or first frame): rebuild the model.
		g.w, g.h = w, h
		g.cells = make([]cell, w*h)
		g.fg = make([]byte, w*h)
		g.tmp = make([]byte, w*h)
		g.label = make([]int32, w*h)
		g.warm = false
	}

	alpha := float32(g.params.LearningRate)
	threshold := float32(g.params.Threshold)

	if !g.warm {
		// Seed from the first observation, like the lidar background grid
		// does in replay mode: no prior data means no basis for foreground.
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := float32(frame.Gray(x*ds, y*ds))
				g.cells[y*w+x] = cell{mean: v, spread: 2, seen: 1}
			}
		}
		g.warm = true
		return Info{}
	}

	for i := range g.fg {
		g.fg[i] = 0
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			c := &g.cells[i]
			obs := float32(frame.Gray(x*ds, y*ds))
			diff := obs - c.mean
			ad := diff
			if ad < 0 {
				ad = -ad
			}
			// Acceptance band: the configured threshold, widened where the
			// pixel has historically been noisy.
			band := threshold
			if s := 3 * c.spread; s > band {
				band = s
			}
			if ad > band {
				g.fg[i] = 1
				// Foreground still adapts, just slowly, so a parked object
				// eventually joins the background.
				c.mean += alpha * 0.1 * diff
			} else {
				c.mean += alpha * diff
				c.spread += alpha * (ad - c.spread)
			}
			if c.seen < math.MaxUint32 {
				c.seen++
			}
		}
	}

	g.open(g.fg, g.tmp, w, h)
	g.close(g.fg, g.tmp, w, h)

	minArea := g.params.MinContourArea / (ds * ds)
	if minArea < 1 {
		minArea = 1
	}
	area, count := g.regions(minArea)

	// Report areas in full-resolution pixel units so thresholds read the
	// same regardless of downscale.
	return Info{
		Detected: count > 0,
		Area:     area * ds * ds,
		Contours: count,
	}
}

// erode3 writes the 3x3 erosion of src into dst.
func erode3(src, dst []byte, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte(1)
			for dy := -1; dy <= 1 && v == 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h || src[ny*w+nx] == 0 {
						v = 0
						break
					}
				}
			}
			dst[y*w+x] = v
		}
	}
}

// dilate3 writes the 3x3 dilation of src into dst.
func dilate3(src, dst []byte, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte(0)
			for dy := -1; dy <= 1 && v == 0; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < w && ny < h && src[ny*w+nx] == 1 {
						v = 1
						break
					}
				}
			}
			dst[y*w+x] = v
		}
	}
}

// open suppresses speckle noise: erosion followed by dilation, in place.
func (g *Gate) open(mask, tmp []byte, w, h int) {
	erode3(mask, tmp, w, h)
	dilate3(tmp, mask, w, h)
}

// close fills small holes: dilation followed by erosion, in place.
func (g *Gate) close(mask, tmp []byte, w, h int) {
	dilate3(mask, tmp, w, h)
	erode3(tmp, mask, w, h)
}

// regions labels 4-connected foreground components and returns the summed
// area and count of those at or above minArea.
func (g *Gate) regions(minArea int) (totalArea, count int) {
	w, h := g.w, g.h
	for i := range g.label {
		g.label[i] = 0
	}
	next := int32(1)
	var stack []int32
	for start := range g.fg {
		if g.fg[start] == 0 || g.label[start] != 0 {
			continue
		}
		area := 0
		stack = append(stack[:0], int32(start))
		g.label[start] = next
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++
			x := int(i) % w
			y := int(i) / w
			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := int32(ny*w + nx)
				if g.fg[ni] == 1 && g.label[ni] == 0 {
					g.label[ni] = next
					stack = append(stack, ni)
				}
			}
		}
		next++
		if area >= minArea {
			totalArea += area
			count++
		}
	}
	return totalArea, count
}
