// Package transcribe provides speech-to-text backends that return
// timestamped segments.
//
// Supported backends:
//   - whisper: whisper.cpp via Go bindings (default)
//   - openai: OpenAI-compatible /audio/transcriptions endpoint
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chaz8081/gostt-batch/internal/config"
	"github.com/chaz8081/gostt-batch/internal/timeline"
)

// ErrTranscription marks a failed model call for one audio buffer.
var ErrTranscription = errors.New("transcribe: transcription failed")

// Transcriber converts audio samples to timestamped segments.
type Transcriber interface {
	// Transcribe runs the model over mono float32 audio samples. Segment
	// start times are relative to the first sample.
	Transcribe(ctx context.Context, samples []float32) ([]timeline.Segment, error)
	// Close releases backend resources.
	Close() error
}

// New creates a Transcriber based on the config backend setting.
func New(cfg *config.Config) (Transcriber, error) {
	tc := cfg.Transcribe
	switch tc.Backend {
	case "openai":
		key := os.Getenv(tc.OpenAI.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("transcribe: %s is not set", tc.OpenAI.APIKeyEnv)
		}
		return NewOpenAITranscriber(key, OpenAIOptions{
			BaseURL:    tc.OpenAI.BaseURL,
			Model:      tc.OpenAI.Model,
			Language:   tc.Language,
			SampleRate: cfg.Audio.SampleRate,
		}), nil
	case "whisper", "":
		return NewWhisperTranscriber(tc.ModelPath, tc.Language)
	default:
		return nil, fmt.Errorf("transcribe: unknown backend %q (supported: whisper, openai)", tc.Backend)
	}
}
