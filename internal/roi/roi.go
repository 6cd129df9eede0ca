// Package roi filters detections by named polygonal zones. Include zones
// admit detections of listed classes whose bounding-box center falls inside
// the polygon; exclude zones suppress listed classes the same way. Zone
// polygons are configured in normalized [0,1] coordinates and rasterized to
// pixel bitmasks once per stream resolution.
package roi

import (
	"fmt"
	"strings"

	"github.com/edgesentinel/alertgate/internal/detect"
)

// Point is a normalized polygon vertex.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Zone is a named polygon with the class names it applies to.
type Zone struct {
	Name    string
	Polygon []Point
	Classes []string
}

// Config declares the include and exclude zones for one stream.
type Config struct {
	Enabled      bool
	IncludeZones []Zone
	ExcludeZones []Zone
}

// mask is one zone rasterized at a fixed resolution.
type mask struct {
	name    string
	classes map[string]bool
	w, h    int
	bits    []bool
}

func (m *mask) contains(x, y int) bool {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return false
	}
	return m.bits[y*m.w+x]
}

// Filter applies zone filtering to detections. Masks are built lazily at the
// first resolution seen and rebuilt whenever the resolution changes, so a
// mid-run stream renegotiation is an explicit invalidation event rather than
// a silent mismatch.
type Filter struct {
	cfg      Config
	w, h     int
	includes []*mask
	excludes []*mask
}

// NewFilter validates the zone configuration and returns a filter.
func NewFilter(cfg Config) (*Filter, error) {
	for _, z := range append(append([]Zone{}, cfg.IncludeZones...), cfg.ExcludeZones...) {
		if cfg.Enabled && len(z.Polygon) < 3 {
			return nil, fmt.Errorf("zone %q: polygon needs at least 3 points, got %d", z.Name, len(z.Polygon))
		}
		for _, p := range z.Polygon {
			if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
				return nil, fmt.Errorf("zone %q: point (%v, %v) outside normalized range", z.Name, p.X, p.Y)
			}
		}
	}
	return &Filter{cfg: cfg}, nil
}

// Enabled reports whether zone filtering is active.
func (f *Filter) Enabled() bool { return f.cfg.Enabled }

// Filter keeps the detections admitted by the zone rules. Disabled filtering
// is a no-op. With filtering enabled, a detection survives iff some include
// zone lists its class and contains its center, and no exclude zone listing
// its class contains its center. No include zones means nothing survives:
// absence of eligibility is not inclusion.
func (f *Filter) Filter(detections []detect.Detection, width, height int) []detect.Detection {
	if !f.cfg.Enabled {
		return detections
	}
	f.ensureMasks(width, height)

	kept := detections[:0:0]
	for _, d := range detections {
		cx, cy := d.Center()
		if f.admitted(d.ClassName, cx, cy) != "" {
			kept = append(kept, d)
		}
	}
	return kept
}

// AdmittingZone returns the name of the include zone that admits the
// detection, or "" if the detection would be filtered out. Used to label
// events with the zone they fired in.
func (f *Filter) AdmittingZone(d detect.Detection, width, height int) string {
	if !f.cfg.Enabled {
		return ""
	}
	f.ensureMasks(width, height)
	cx, cy := d.Center()
	return f.admitted(d.ClassName, cx, cy)
}

func (f *Filter) admitted(class string, cx, cy int) string {
	class = strings.ToLower(class)
	include := ""
	for _, m := range f.includes {
		if m.classes[class] && m.contains(cx, cy) {
			include = m.name
			break
		}
	}
	if include == "" {
		return ""
	}
	for _, m := range f.excludes {
		if m.classes[class] && m.contains(cx, cy) {
			return ""
		}
	}
	return include
}

// ensureMasks rasterizes every zone at the given resolution, rebuilding when
// the resolution changes.
func (f *Filter) ensureMasks(width, height int) {
	if width == f.w && height == f.h && (f.includes != nil || f.excludes != nil) {
		return
	}
	f.w, f.h = width, height
	f.includes = buildMasks(f.cfg.IncludeZones, width, height)
	f.excludes = buildMasks(f.cfg.ExcludeZones, width, height)
}

func buildMasks(zones []Zone, w, h int) []*mask {
	masks := make([]*mask, 0, len(zones))
	for _, z := range zones {
		m := &mask{
			name:    z.Name,
			classes: make(map[string]bool, len(z.Classes)),
			w:       w,
			h:       h,
			bits:    make([]bool, w*h),
		}
		for _, c := range z.Classes {
			m.classes[strings.ToLower(c)] = true
		}
		fillPolygon(m.bits, z.Polygon, w, h)
		masks = append(masks, m)
	}
	return masks
}

// fillPolygon rasterizes a normalized polygon into bits using even-odd
// scanline filling against pixel centers.
func fillPolygon(bits []bool, poly []Point, w, h int) {
	if len(poly) < 3 {
		return
	}
	// Resolve vertices to pixel space once.
	xs := make([]float64, len(poly))
	ys := make([]float64, len(poly))
	for i, p := range poly {
		xs[i] = p.X * float64(w)
		ys[i] = p.Y * float64(h)
	}
	for y := 0; y < h; y++ {
		cy := float64(y) + 0.5
		// Collect x crossings of the scanline with every edge.
		var crossings []float64
		j := len(poly) - 1
		for i := range poly {
			y1, y2 := ys[i], ys[j]
			if (y1 <= cy && y2 > cy) || (y2 <= cy && y1 > cy) {
				t := (cy - y1) / (y2 - y1)
				crossings = append(crossings, xs[i]+t*(xs[j]-xs[i]))
			}
			j = i
		}
		// Sort the few crossings in place; insertion sort beats pulling in
		// a sort call for the typical 2-4 entries.
		for i := 1; i < len(crossings); i++ {
			for k := i; k > 0 && crossings[k] < crossings[k-1]; k-- {
				crossings[k], crossings[k-1] = crossings[k-1], crossings[k]
			}
		}
		for i := 0; i+1 < len(crossings); i += 2 {
			x0 := int(crossings[i] + 0.5)
			x1 := int(crossings[i+1] + 0.5)
			if x0 < 0 {
				x0 = 0
			}
			if x1 > w {
				x1 = w
			}
			for x := x0; x < x1; x++ {
				bits[y*w+x] = true
			}
		}
	}
}
