package roi

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/edgesentinel/alertgate/internal/detect"
)

func det(class string, cx, cy int) detect.Detection {
	return detect.Detection{
		ClassName: class,
		Box:       [4]int{cx - 5, cy - 5, cx + 5, cy + 5},
	}
}

func square(x0, y0, x1, y1 float64) []Point {
	return []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func TestFilterDisabledPassesEverything(t *testing.T) {
	f, err := NewFilter(Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	in := []detect.Detection{det("cat", 10, 10), det("dog", 600, 400)}
	got := f.Filter(in, 640, 480)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("disabled filter changed detections (-want +got):\n%s", diff)
	}
}

func TestFilterRejectsShortPolygon(t *testing.T) {
	_, err := NewFilter(Config{
		Enabled:      true,
		IncludeZones: []Zone{{Name: "bad", Polygon: []Point{{0, 0}, {1, 1}}, Classes: []string{"cat"}}},
	})
	if err == nil {
		t.Fatal("expected error for a 2-point polygon")
	}
}

func TestFilterRejectsUnnormalizedPoints(t *testing.T) {
	_, err := NewFilter(Config{
		Enabled:      true,
		IncludeZones: []Zone{{Name: "bad", Polygon: []Point{{0, 0}, {2, 0}, {1, 1}}, Classes: []string{"cat"}}},
	})
	if err == nil {
		t.Fatal("expected error for coordinates outside [0,1]")
	}
}

func TestFilterIncludeExcludeMatrix(t *testing.T) {
	// Include zone covers the left half for cats; exclude zone carves out
	// the top-left quarter.
	f, err := NewFilter(Config{
		Enabled: true,
		IncludeZones: []Zone{
			{Name: "left", Polygon: square(0, 0, 0.5, 1), Classes: []string{"cat"}},
		},
		ExcludeZones: []Zone{
			{Name: "porch", Polygon: square(0, 0, 0.5, 0.5), Classes: []string{"cat"}},
		},
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	const w, h = 640, 480
	cases := []struct {
		name string
		d    detect.Detection
		kept bool
	}{
		{"inside include, outside exclude", det("cat", 100, 400), true},
		{"inside include and exclude", det("cat", 100, 100), false},
		{"outside include", det("cat", 600, 400), false},
		{"class not listed by include zone", det("dog", 100, 400), false},
		{"class name case-insensitive", det("Cat", 100, 400), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := f.Filter([]detect.Detection{tc.d}, w, h)
			if kept := len(got) == 1; kept != tc.kept {
				t.Errorf("kept = %v, want %v", kept, tc.kept)
			}
		})
	}
}

func TestFilterNoIncludeZonesDropsAll(t *testing.T) {
	f, err := NewFilter(Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	got := f.Filter([]detect.Detection{det("cat", 100, 100)}, 640, 480)
	if len(got) != 0 {
		t.Fatalf("enabled filter with no include zones must drop everything, kept %d", len(got))
	}
}

func TestAdmittingZoneNamesTheZone(t *testing.T) {
	f, err := NewFilter(Config{
		Enabled: true,
		IncludeZones: []Zone{
			{Name: "backyard", Polygon: square(0, 0.3, 1, 1), Classes: []string{"cat"}},
		},
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	if zone := f.AdmittingZone(det("cat", 320, 400), 640, 480); zone != "backyard" {
		t.Errorf("admitting zone = %q, want backyard", zone)
	}
	if zone := f.AdmittingZone(det("cat", 320, 50), 640, 480); zone != "" {
		t.Errorf("detection above the zone admitted by %q", zone)
	}
}

func TestFilterRebuildsMasksOnResolutionChange(t *testing.T) {
	f, err := NewFilter(Config{
		Enabled: true,
		IncludeZones: []Zone{
			{Name: "left", Polygon: square(0, 0, 0.5, 1), Classes: []string{"cat"}},
		},
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	// At 640x480 the zone boundary sits at x=320; at 1280x960 it sits at
	// x=640. The same normalized geometry must hold at both resolutions.
	if got := f.Filter([]detect.Detection{det("cat", 300, 240)}, 640, 480); len(got) != 1 {
		t.Fatal("expected detection inside the zone at 640x480")
	}
	if got := f.Filter([]detect.Detection{det("cat", 600, 480)}, 1280, 960); len(got) != 1 {
		t.Fatal("expected detection inside the zone at 1280x960")
	}
	if got := f.Filter([]detect.Detection{det("cat", 700, 480)}, 1280, 960); len(got) != 0 {
		t.Fatal("expected detection outside the zone at 1280x960 to drop")
	}
}
