package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chaz8081/gostt-batch/internal/audio"
	"github.com/chaz8081/gostt-batch/internal/timeline"
)

// OpenAIOptions configures an OpenAITranscriber.
type OpenAIOptions struct {
	BaseURL    string // empty uses the OpenAI API
	Model      string
	Language   string
	SampleRate int
}

// OpenAITranscriber sends audio to an OpenAI-compatible transcription
// endpoint and reads segment timings from the verbose JSON response.
type OpenAITranscriber struct {
	client *openai.Client
	opts   OpenAIOptions
}

// NewOpenAITranscriber creates a transcriber for the given API key.
func NewOpenAITranscriber(apiKey string, opts OpenAIOptions) *OpenAITranscriber {
	cc := openai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cc.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.Whisper1
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}
	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(cc),
		opts:   opts,
	}
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (t *OpenAITranscriber) Close() error {
	return nil
}

// Transcribe uploads samples as a WAV file and returns the timed segments.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, samples []float32) ([]timeline.Segment, error) {
	wav, err := audio.EncodeWAV(samples, t.opts.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.opts.Model,
		FilePath: "window.wav",
		Reader:   bytes.NewReader(wav),
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: t.opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %w", ErrTranscription, err)
	}

	if len(resp.Segments) == 0 {
		if resp.Text == "" {
			return nil, nil
		}
		return []timeline.Segment{{Start: 0, Text: resp.Text}}, nil
	}

	segments := make([]timeline.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, timeline.Segment{
			Start: time.Duration(s.Start * float64(time.Second)),
			Text:  s.Text,
		})
	}
	return segments, nil
}
