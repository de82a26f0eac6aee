// Package pipeline runs batch transcription: it decodes each recording,
// transcribes it window by window, reconciles the windows into one
// transcript and writes the result.
//
// Failures are isolated per unit. A recording that cannot be decoded is
// skipped, a window whose transcription fails leaves a gap, and neither
// stops the batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chaz8081/gostt-batch/internal/audio"
	"github.com/chaz8081/gostt-batch/internal/timeline"
	"github.com/chaz8081/gostt-batch/internal/transcribe"
	"github.com/chaz8081/gostt-batch/internal/transcript"
)

// Source loads a recording as mono PCM.
type Source interface {
	Load(ctx context.Context, path string) (*audio.Buffer, error)
}

// Options controls windowing and output.
type Options struct {
	// Chunking splits recordings into overlapping windows. When false each
	// recording is transcribed as a single window.
	Chunking     bool
	WindowLength time.Duration
	Overlap      time.Duration

	OutputDir   string
	WindowFiles bool // write <stem>_partNN.txt for each window when chunking
}

// WindowWarning records a non-fatal problem with one window.
type WindowWarning struct {
	Window timeline.Window
	Err    error
}

func (w WindowWarning) String() string {
	return fmt.Sprintf("%s: %v", w.Window, w.Err)
}

// FileReport describes the outcome of processing one recording.
type FileReport struct {
	Path     string
	Output   string // compiled transcript path; empty if nothing was written
	Duration time.Duration
	Windows  int
	Segments int
	Warnings []WindowWarning
	Err      error // set when the file was skipped or its transcript not written
	Elapsed  time.Duration
}

// Processor transcribes recordings one at a time.
type Processor struct {
	source Source
	tr     transcribe.Transcriber
	opts   Options
	log    *slog.Logger
}

// NewProcessor creates a Processor. A nil logger discards output.
func NewProcessor(source Source, tr transcribe.Transcriber, opts Options, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{source: source, tr: tr, opts: opts, log: logger}
}

// Windows returns the windows used for a recording of the given length.
func (p *Processor) Windows(total time.Duration) ([]timeline.Window, error) {
	if !p.opts.Chunking {
		if total <= 0 {
			return nil, nil
		}
		return timeline.ComputeWindows(total, total, 0)
	}
	return timeline.ComputeWindows(total, p.opts.WindowLength, p.opts.Overlap)
}

// ProcessFile decodes, transcribes and writes the transcript for path.
func (p *Processor) ProcessFile(ctx context.Context, path string) (rep FileReport) {
	start := time.Now()
	rep.Path = path
	defer func() { rep.Elapsed = time.Since(start) }()

	log := p.log.With("file", filepath.Base(path))
	log.Info("processing")

	buf, err := p.source.Load(ctx, path)
	if err != nil {
		log.Warn("skipping file", "error", err)
		rep.Err = err
		return rep
	}
	rep.Duration = buf.Duration()

	stem := transcript.Stem(path)
	segments, warnings, windows, err := p.transcribe(ctx, log, buf, stem)
	rep.Windows = windows
	rep.Warnings = warnings
	if err != nil {
		rep.Err = err
		return rep
	}

	out := filepath.Join(p.opts.OutputDir, transcript.FileName(stem))
	if err := transcript.WriteFile(out, segments); err != nil {
		log.Error("writing transcript failed", "error", err)
		rep.Err = err
		return rep
	}
	rep.Output = out
	rep.Segments = len(segments)

	log.Info("compiled transcript",
		"output", out,
		"segments", len(segments),
		"windows", windows,
		"warnings", len(warnings),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return rep
}

// transcribe runs every window of buf through the model and reconciles the
// results. The returned error is only set when ctx is done.
func (p *Processor) transcribe(ctx context.Context, log *slog.Logger, buf *audio.Buffer, stem string) ([]timeline.Segment, []WindowWarning, int, error) {
	total := buf.Duration()
	windows, err := p.Windows(total)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(windows) == 0 {
		log.Warn("recording is empty")
		return nil, nil, 0, nil
	}
	log.Debug("computed windows", "duration", total, "windows", len(windows))

	var warnings []WindowWarning
	results := make([]timeline.WindowResult, 0, len(windows))
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, warnings, len(windows), err
		}

		global, err := p.transcribeWindow(ctx, log, buf, w)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, warnings, len(windows), ctxErr
			}
			warnings = append(warnings, WindowWarning{Window: w, Err: err})
			if errors.Is(err, timeline.ErrInput) {
				log.Warn("dropped malformed segments", "window", w.Index, "error", err)
			} else {
				log.Warn("window transcription failed", "window", w.Index, "error", err)
				continue
			}
		}

		if p.opts.Chunking && p.opts.WindowFiles {
			if err := p.writeWindowFile(stem, w, global); err != nil {
				log.Warn("writing window transcript failed", "window", w.Index, "error", err)
				warnings = append(warnings, WindowWarning{Window: w, Err: err})
			}
		}
		results = append(results, timeline.WindowResult{Window: w, Segments: global})
	}

	return timeline.Reconcile(results), warnings, len(windows), nil
}

// transcribeWindow transcribes one window and maps its segments onto the
// recording timeline. The window's audio clip is released before return.
// An ErrInput error comes with the segments that were valid.
func (p *Processor) transcribeWindow(ctx context.Context, log *slog.Logger, buf *audio.Buffer, w timeline.Window) ([]timeline.Segment, error) {
	clip := buf.Clip(w.ReadStart, w.ReadEnd)
	defer clip.Release()

	log.Debug("transcribing window",
		"window", w.Index,
		"read_start", w.ReadStart,
		"read_end", w.ReadEnd,
		"samples", len(clip.Samples))

	local, err := p.tr.Transcribe(ctx, clip.Samples)
	if err != nil {
		if !errors.Is(err, transcribe.ErrTranscription) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", transcribe.ErrTranscription, err)
		}
		return nil, err
	}
	return timeline.ToGlobal(w, local)
}

func (p *Processor) writeWindowFile(stem string, w timeline.Window, global []timeline.Segment) error {
	segs := make([]timeline.Segment, 0, len(global))
	for _, s := range global {
		if s = timeline.Normalize(s); s.Text != "" {
			segs = append(segs, s)
		}
	}
	return transcript.WriteFile(filepath.Join(p.opts.OutputDir, transcript.WindowFileName(stem, w.Index)), segs)
}

// BatchReport collects the outcome of every file in a run.
type BatchReport struct {
	Files []FileReport
}

// Failed returns the number of files that produced no transcript.
func (b BatchReport) Failed() int {
	n := 0
	for _, f := range b.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Warnings returns the number of window warnings across all files.
func (b BatchReport) Warnings() int {
	n := 0
	for _, f := range b.Files {
		n += len(f.Warnings)
	}
	return n
}

// Run processes paths in order. It stops early only when ctx is done;
// remaining files are reported with the context error.
func (p *Processor) Run(ctx context.Context, paths []string) (BatchReport, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0755); err != nil {
		return BatchReport{}, fmt.Errorf("creating output dir: %w", err)
	}

	var rep BatchReport
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			rep.Files = append(rep.Files, FileReport{Path: path, Err: err})
			continue
		}
		rep.Files = append(rep.Files, p.ProcessFile(ctx, path))
	}

	p.log.Info("all files processed",
		"files", len(rep.Files),
		"failed", rep.Failed(),
		"window_warnings", rep.Warnings())
	return rep, nil
}
