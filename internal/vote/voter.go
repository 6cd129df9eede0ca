// Package vote converts noisy per-frame detection booleans into debounced
// per-class triggers using a sliding window and a minimum vote count.
package vote

import (
	"github.com/edgesentinel/alertgate/internal/detect"
)

// ClassParams configures voting for one class.
type ClassParams struct {
	// WindowSize is the bounded history length.
	WindowSize int
	// VotesRequired is the minimum number of positive entries in the
	// window for the class to trigger. A value larger than WindowSize is
	// valid and simply means the class can never trigger.
	VotesRequired int
}

// ClassStatus is a read-only view of one class's voting state, published to
// the dashboard boundary each tick.
type ClassStatus struct {
	WindowSize    int    `json:"window_size"`
	VotesRequired int    `json:"votes_required"`
	CurrentVotes  int    `json:"current_votes"`
	HistoryLength int    `json:"history_length"`
	RecentHistory []bool `json:"recent_history"`
}

// window is a FIFO boolean history bounded at capacity.
type window struct {
	params  ClassParams
	entries []bool
	votes   int
}

func (w *window) push(detected bool) {
	w.entries = append(w.entries, detected)
	if detected {
		w.votes++
	}
	if len(w.entries) > w.params.WindowSize {
		if w.entries[0] {
			w.votes--
		}
		w.entries = w.entries[1:]
	}
}

func (w *window) triggered() bool {
	return w.params.VotesRequired > 0 && w.votes >= w.params.VotesRequired
}

func (w *window) reset() {
	w.entries = w.entries[:0]
	w.votes = 0
}

// Voter maintains an independent voting window per configured class. It is
// used only from the pipeline tick goroutine and needs no locking.
type Voter struct {
	classes []string
	windows map[string]*window
}

// NewVoter builds a voter for the configured classes. Classes absent from
// params are not tracked: the class map is fixed at startup, there are no
// silent on-the-fly defaults.
func NewVoter(params map[string]ClassParams) *Voter {
	v := &Voter{windows: make(map[string]*window, len(params))}
	for name, p := range params {
		v.classes = append(v.classes, name)
		v.windows[name] = &window{params: p}
	}
	return v
}

// Update appends this tick's observation for every configured class —
// absence from detections counts as "not seen" — and returns the classes
// whose windows currently meet their vote threshold.
func (v *Voter) Update(detections []detect.Detection) []string {
	seen := make(map[string]bool, len(detections))
	for _, d := range detections {
		seen[d.ClassName] = true
	}

	var triggered []string
	for _, name := range v.classes {
		w := v.windows[name]
		w.push(seen[name])
		if w.triggered() {
			triggered = append(triggered, name)
		}
	}
	return triggered
}

// Reset clears the window for class so the next trigger requires a fresh run
// of corroborating evidence. Called once immediately after a delivered alert.
func (v *Voter) Reset(class string) {
	if w, ok := v.windows[class]; ok {
		w.reset()
	}
}

// Status returns the current voting state per class. The history tail is
// capped at the last five entries, enough for the dashboard strip.
func (v *Voter) Status() map[string]ClassStatus {
	status := make(map[string]ClassStatus, len(v.classes))
	for _, name := range v.classes {
		w := v.windows[name]
		tail := w.entries
		if len(tail) > 5 {
			tail = tail[len(tail)-5:]
		}
		recent := make([]bool, len(tail))
		copy(recent, tail)
		status[name] = ClassStatus{
			WindowSize:    w.params.WindowSize,
			VotesRequired: w.params.VotesRequired,
			CurrentVotes:  w.votes,
			HistoryLength: len(w.entries),
			RecentHistory: recent,
		}
	}
	return status
}
