package timeline

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// WindowResult pairs a window with the global-time segments produced while
// transcribing it.
type WindowResult struct {
	Window   Window
	Segments []Segment
}

type segmentKey struct {
	start time.Duration
	text  string
}

// Normalize truncates the start to whole seconds and trims the text. It is
// the form segments take in compiled and per-window transcripts.
func Normalize(s Segment) Segment {
	return Segment{
		Start: s.Start.Truncate(time.Second),
		Text:  strings.TrimSpace(s.Text),
	}
}

// Reconcile merges the results of every window of one recording into a
// single transcript sorted by start time.
//
// A segment is kept only if its window owns its (truncated) start time.
// Among the kept segments, exact (start, text) repeats are dropped. Ties in
// start time keep emission order: window order, then segment order.
func Reconcile(results []WindowResult) []Segment {
	seen := make(map[segmentKey]struct{})
	var out []Segment
	for _, r := range results {
		for _, s := range r.Segments {
			s = Normalize(s)
			if s.Text == "" || !r.Window.Owns(s.Start) {
				continue
			}
			k := segmentKey{start: s.Start, text: s.Text}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b Segment) int {
		return cmp.Compare(a.Start, b.Start)
	})
	return out
}
