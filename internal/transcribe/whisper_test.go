package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaz8081/gostt-batch/internal/audio"
	"github.com/chaz8081/gostt-batch/internal/timeline"
)

// whisperModelPath resolves the path to the whisper model relative to the project root.
func whisperModelPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("..", "..", "models", "ggml-base.en.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("model not found at %s (run 'gostt-batch -download-model' first): %v", path, err)
	}
	return path
}

// jfkSamples loads the JFK sample shipped with whisper.cpp.
func jfkSamples(t *testing.T) []float32 {
	t.Helper()
	wavPath := filepath.Join("..", "..", "third_party", "whisper.cpp", "samples", "jfk.wav")
	if _, err := os.Stat(wavPath); err != nil {
		t.Skipf("JFK sample not found at %s: %v", wavPath, err)
	}
	buf, err := audio.NewDecoder("", audio.DefaultSampleRate).Load(context.Background(), wavPath)
	if err != nil {
		t.Fatalf("decode %s: %v", wavPath, err)
	}
	return buf.Samples
}

func TestNewWhisperTranscriber(t *testing.T) {
	path := whisperModelPath(t)

	tr, err := NewWhisperTranscriber(path, "")
	if err != nil {
		t.Fatalf("NewWhisperTranscriber(%q) returned error: %v", path, err)
	}
	if tr == nil {
		t.Fatal("NewWhisperTranscriber returned nil without error")
	}

	err = tr.Close()
	if err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}
}

func TestNewWhisperTranscriberBadPath(t *testing.T) {
	_, err := NewWhisperTranscriber("/nonexistent/model.bin", "")
	if err == nil {
		t.Fatal("NewWhisperTranscriber with bad path should return error")
	}
}

func TestContextLanguage(t *testing.T) {
	tests := []struct {
		lang         string
		multilingual bool
		want         string
	}{
		{"", true, "auto"},
		{"", false, ""},
		{"de", true, "de"},
		{"en", false, "en"},
	}
	for _, tt := range tests {
		if got := contextLanguage(tt.lang, tt.multilingual); got != tt.want {
			t.Errorf("contextLanguage(%q, %v) = %q, want %q", tt.lang, tt.multilingual, got, tt.want)
		}
	}
}

// TestWhisperEmptyLanguageAutoDetects needs a multilingual model; the
// English-only one used elsewhere cannot auto-detect.
func TestWhisperEmptyLanguageAutoDetects(t *testing.T) {
	path := filepath.Join("..", "..", "models", "ggml-base.bin")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("multilingual model not found at %s: %v", path, err)
	}

	tr, err := NewWhisperTranscriber(path, "")
	if err != nil {
		t.Fatalf("NewWhisperTranscriber: %v", err)
	}
	defer func() { _ = tr.Close() }()

	wctx, err := tr.newContext()
	if err != nil {
		t.Fatalf("newContext: %v", err)
	}
	if got := wctx.Language(); got != "auto" {
		t.Errorf("context language = %q, want auto", got)
	}
}

func TestWhisperTranscribeJFK(t *testing.T) {
	path := whisperModelPath(t)
	samples := jfkSamples(t)

	tr, err := NewWhisperTranscriber(path, "en")
	if err != nil {
		t.Fatalf("NewWhisperTranscriber: %v", err)
	}
	defer func() { _ = tr.Close() }()

	segments, err := tr.Transcribe(context.Background(), samples)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("Transcribe returned no segments")
	}

	var text []string
	for i, s := range segments {
		if s.Start < 0 {
			t.Errorf("segment %d has negative start %s", i, s.Start)
		}
		if i > 0 && s.Start < segments[i-1].Start {
			t.Errorf("segment %d starts before segment %d", i, i-1)
		}
		text = append(text, s.Text)
	}

	lower := strings.ToLower(strings.Join(text, " "))
	if !strings.Contains(lower, "ask not what your country") {
		t.Errorf("expected transcript to contain 'ask not what your country', got: %q", lower)
	}
}

// TestWhisperChunkedMatchesWhole transcribes the JFK sample as one window
// and as overlapping windows and checks the reconciled transcripts keep the
// same words.
func TestWhisperChunkedMatchesWhole(t *testing.T) {
	path := whisperModelPath(t)
	samples := jfkSamples(t)
	buf := &audio.Buffer{Samples: samples, SampleRate: audio.DefaultSampleRate}

	tr, err := NewWhisperTranscriber(path, "en")
	if err != nil {
		t.Fatalf("NewWhisperTranscriber: %v", err)
	}
	defer func() { _ = tr.Close() }()

	windows, err := timeline.ComputeWindows(buf.Duration(), buf.Duration()/2, buf.Duration()/8)
	if err != nil {
		t.Fatalf("ComputeWindows: %v", err)
	}

	var results []timeline.WindowResult
	for _, w := range windows {
		clip := buf.Clip(w.ReadStart, w.ReadEnd)
		local, err := tr.Transcribe(context.Background(), clip.Samples)
		clip.Release()
		if err != nil {
			t.Fatalf("Transcribe %s: %v", w, err)
		}
		global, err := timeline.ToGlobal(w, local)
		if err != nil {
			t.Fatalf("ToGlobal %s: %v", w, err)
		}
		results = append(results, timeline.WindowResult{Window: w, Segments: global})
	}

	compiled := timeline.Reconcile(results)
	if len(compiled) == 0 {
		t.Fatal("chunked transcription produced no segments")
	}
	var text []string
	for _, s := range compiled {
		text = append(text, s.Text)
	}
	if lower := strings.ToLower(strings.Join(text, " ")); !strings.Contains(lower, "country") {
		t.Errorf("chunked transcript lost content: %q", lower)
	}
}

func TestWhisperTranscribeCanceled(t *testing.T) {
	path := whisperModelPath(t)

	tr, err := NewWhisperTranscriber(path, "")
	if err != nil {
		t.Fatalf("NewWhisperTranscriber: %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Transcribe(ctx, make([]float32, 16000)); !errors.Is(err, context.Canceled) {
		t.Errorf("Transcribe() error = %v, want context.Canceled", err)
	}
}
