package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes interleaved 16-bit samples to a WAV file in dir.
func writeWAV(t *testing.T, dir string, sampleRate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(dir, "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating wav: %v", err)
	}
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encoding wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}
	return path
}

func failingRunner(t *testing.T) CommandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		t.Fatalf("ffmpeg should not run, got %s %v", name, args)
		return nil, nil
	}
}

func TestBufferDuration(t *testing.T) {
	b := &Buffer{Samples: make([]float32, 40000), SampleRate: 16000}
	if got := b.Duration(); got != 2500*time.Millisecond {
		t.Errorf("Duration() = %s, want 2.5s", got)
	}
	if got := (&Buffer{}).Duration(); got != 0 {
		t.Errorf("zero Buffer Duration() = %s, want 0", got)
	}
}

func TestClip(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = float32(i)
	}
	b := &Buffer{Samples: samples, SampleRate: 10}

	c := b.Clip(2*time.Second, 5*time.Second)
	if len(c.Samples) != 30 {
		t.Fatalf("clip has %d samples, want 30", len(c.Samples))
	}
	if c.Samples[0] != 20 || c.Samples[29] != 49 {
		t.Errorf("clip spans %v..%v, want 20..49", c.Samples[0], c.Samples[29])
	}
	if got := c.Duration(10); got != 3*time.Second {
		t.Errorf("clip Duration() = %s, want 3s", got)
	}

	c.Samples[0] = -1
	if samples[20] != 20 {
		t.Error("clip shares storage with the source buffer")
	}

	c.Release()
	c.Release()
	if c.Samples != nil {
		t.Error("Release() should drop the samples")
	}
}

func TestClipClamps(t *testing.T) {
	b := &Buffer{Samples: make([]float32, 50), SampleRate: 10}

	c := b.Clip(-time.Second, 20*time.Second)
	defer c.Release()
	if len(c.Samples) != 50 {
		t.Errorf("clamped clip has %d samples, want 50", len(c.Samples))
	}

	empty := b.Clip(4*time.Second, 2*time.Second)
	defer empty.Release()
	if len(empty.Samples) != 0 {
		t.Errorf("inverted clip has %d samples, want 0", len(empty.Samples))
	}
}

func TestLoadWAVMono(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 16000, 1, []int{0, 16384, -16384, 32767})

	d := NewDecoder("", 16000, WithCommandRunner(failingRunner(t)))
	buf, err := d.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0}
	if len(buf.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(want))
	}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Errorf("sample[%d] = %v, want %v", i, buf.Samples[i], want[i])
		}
	}
	if buf.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", buf.SampleRate)
	}
}

func TestLoadWAVStereoDownmix(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 16000, 2, []int{16384, 0, -16384, -16384})

	d := NewDecoder("", 16000, WithCommandRunner(failingRunner(t)))
	buf, err := d.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []float32{0.25, -0.5}
	if len(buf.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(want))
	}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Errorf("sample[%d] = %v, want %v", i, buf.Samples[i], want[i])
		}
	}
}

func TestLoadResamplesThroughFFmpeg(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 44100, 1, []int{1, 2, 3})

	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(16384))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(0x8000)) // -32768

	var gotArgs []string
	d := NewDecoder("/opt/ffmpeg", 16000, WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != "/opt/ffmpeg" {
			t.Errorf("ran %q, want /opt/ffmpeg", name)
		}
		gotArgs = args
		return pcm, nil
	}))

	buf, err := d.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(buf.Samples) != 2 || buf.Samples[0] != 0.5 || buf.Samples[1] != -1 {
		t.Errorf("samples = %v, want [0.5 -1]", buf.Samples)
	}

	joined := map[string]bool{}
	for _, a := range gotArgs {
		joined[a] = true
	}
	for _, want := range []string{path, "16000", "s16le"} {
		if !joined[want] {
			t.Errorf("ffmpeg args %v missing %q", gotArgs, want)
		}
	}
}

func TestLoadDecodeError(t *testing.T) {
	d := NewDecoder("", 16000, WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: invalid data found")
	}))

	_, err := d.Load(context.Background(), "/recordings/broken.mp3")
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Load() error = %v, want ErrDecode", err)
	}
}

func TestLoadMissingWAV(t *testing.T) {
	d := NewDecoder("", 16000, WithCommandRunner(failingRunner(t)))
	_, err := d.Load(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Load() error = %v, want ErrDecode", err)
	}
}

func TestS16leToFloat32OddLength(t *testing.T) {
	got := s16leToFloat32([]byte{0x00, 0x40, 0x7f})
	if len(got) != 1 || got[0] != 0.5 {
		t.Errorf("s16leToFloat32() = %v, want [0.5]", got)
	}
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1.5, -1.5}
	data, err := EncodeWAV(in, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder("", 16000, WithCommandRunner(failingRunner(t)))
	buf, err := d.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(buf.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(in))
	}
	want := []float32{0, 16384.0 / 32768, -16384.0 / 32768, 32767.0 / 32768, -1}
	for i := range want {
		if diff := buf.Samples[i] - want[i]; diff > 1e-4 || diff < -1e-4 {
			t.Errorf("sample[%d] = %v, want ~%v", i, buf.Samples[i], want[i])
		}
	}
}
