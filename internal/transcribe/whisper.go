package transcribe

import (
	"context"
	"fmt"
	"io"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/chaz8081/gostt-batch/internal/timeline"
)

// WhisperTranscriber wraps a whisper.cpp model for speech-to-text.
// The model is loaded once and a fresh context is created per call.
type WhisperTranscriber struct {
	model    whisper.Model
	language string
}

// NewWhisperTranscriber loads a whisper model from the given path. An empty
// language lets the model detect it.
// The caller must call Close() when done.
func NewWhisperTranscriber(modelPath, language string) (*WhisperTranscriber, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: load whisper model %q: %w", modelPath, err)
	}
	return &WhisperTranscriber{model: model, language: language}, nil
}

// Close releases the whisper model resources.
func (t *WhisperTranscriber) Close() error {
	if t.model != nil {
		return t.model.Close()
	}
	return nil
}

// Transcribe runs whisper over mono 16kHz float32 samples. The call blocks
// until inference finishes; ctx is only checked before it starts.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, samples []float32) ([]timeline.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := t.newContext()
	if err != nil {
		return nil, err
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("%w: process: %w", ErrTranscription, err)
	}

	var segments []timeline.Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: next segment: %w", ErrTranscription, err)
		}
		segments = append(segments, timeline.Segment{Start: seg.Start, Text: seg.Text})
	}

	return segments, nil
}

// newContext creates an inference context with the configured language.
func (t *WhisperTranscriber) newContext() (whisper.Context, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: create context: %w", ErrTranscription, err)
	}
	if lang := contextLanguage(t.language, t.model.IsMultilingual()); lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return nil, fmt.Errorf("%w: set language %q: %w", ErrTranscription, lang, err)
		}
	}
	return wctx, nil
}

// contextLanguage maps a configured language to the value passed to
// SetLanguage. Empty means auto-detect on multilingual models; English-only
// models keep their default and return "".
func contextLanguage(lang string, multilingual bool) string {
	if lang == "" && multilingual {
		return "auto"
	}
	return lang
}
