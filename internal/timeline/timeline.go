// Package timeline splits a recording into overlapping transcription windows
// and folds the per-window results back into one ordered transcript.
//
// A window owns a half-open nominal range of the recording. The nominal
// ranges of all windows tile [0, total) exactly. Each window also has a
// wider read range that is padded by the overlap on both sides; only
// segments that start inside the nominal range survive reconciliation.
package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInput marks malformed segment data returned by a transcriber.
	ErrInput = errors.New("timeline: invalid segment")
	// ErrInvalidWindowing is returned for a window length or overlap that
	// cannot tile a recording.
	ErrInvalidWindowing = errors.New("timeline: invalid windowing parameters")
)

// Segment is one timestamped utterance. Start is an offset from either the
// window read start (local) or the recording start (global), depending on
// where the segment is in the pipeline.
type Segment struct {
	Start time.Duration
	Text  string
}

// Window is a time-bounded slice of the recording submitted to the model
// as a single unit.
type Window struct {
	Index        int
	NominalStart time.Duration
	NominalEnd   time.Duration // exclusive
	ReadStart    time.Duration
	ReadEnd      time.Duration // exclusive
}

// Owns reports whether t falls inside the window's nominal range.
func (w Window) Owns(t time.Duration) bool {
	return t >= w.NominalStart && t < w.NominalEnd
}

// ReadLength returns the amount of audio fed to the model for this window.
func (w Window) ReadLength() time.Duration {
	return w.ReadEnd - w.ReadStart
}

// String returns a human-readable representation for logging.
func (w Window) String() string {
	return fmt.Sprintf("window %d: nominal [%s, %s) read [%s, %s)",
		w.Index, w.NominalStart, w.NominalEnd, w.ReadStart, w.ReadEnd)
}

// ComputeWindows partitions [0, total) into windows of nominal length with
// overlap of padding on each side. The last window may be shorter than
// nominal. A total of zero or less yields no windows.
func ComputeWindows(total, nominal, overlap time.Duration) ([]Window, error) {
	if nominal <= 0 {
		return nil, fmt.Errorf("%w: window length %s must be > 0", ErrInvalidWindowing, nominal)
	}
	if overlap < 0 || overlap >= nominal {
		return nil, fmt.Errorf("%w: overlap %s must be in [0, %s)", ErrInvalidWindowing, overlap, nominal)
	}
	if total <= 0 {
		return nil, nil
	}

	n := int((total + nominal - 1) / nominal)
	windows := make([]Window, 0, n)
	for i, start := 0, time.Duration(0); start < total; i, start = i+1, start+nominal {
		end := min(start+nominal, total)
		readStart := time.Duration(0)
		if i > 0 {
			readStart = max(0, start-overlap)
		}
		windows = append(windows, Window{
			Index:        i,
			NominalStart: start,
			NominalEnd:   end,
			ReadStart:    readStart,
			ReadEnd:      min(total, end+overlap),
		})
	}
	return windows, nil
}

// ToGlobal shifts window-local segments onto the recording timeline. Order
// and text are preserved. Segments with a negative local start are dropped
// and reported through the returned error, which wraps ErrInput; the valid
// segments are returned either way.
func ToGlobal(w Window, local []Segment) ([]Segment, error) {
	global := make([]Segment, 0, len(local))
	var errs []error
	for i, s := range local {
		if s.Start < 0 {
			errs = append(errs, fmt.Errorf("%w: %s segment %d has negative start %s", ErrInput, w, i, s.Start))
			continue
		}
		global = append(global, Segment{Start: w.ReadStart + s.Start, Text: s.Text})
	}
	return global, errors.Join(errs...)
}
