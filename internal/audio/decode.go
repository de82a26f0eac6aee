package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrDecode marks a recording that could not be read or converted.
var ErrDecode = errors.New("audio: decode failed")

// DefaultSampleRate is the rate whisper models expect.
const DefaultSampleRate = 16000

// CommandRunner runs an external program and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Decoder loads recordings as mono PCM at a fixed sample rate. WAV files
// that already match the rate are decoded in-process; everything else is
// converted by ffmpeg.
type Decoder struct {
	FFmpegPath string
	SampleRate int

	run CommandRunner
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithCommandRunner replaces the function used to invoke ffmpeg.
func WithCommandRunner(r CommandRunner) DecoderOption {
	return func(d *Decoder) {
		d.run = r
	}
}

// NewDecoder creates a Decoder. Empty ffmpegPath defaults to "ffmpeg" on
// PATH and a zero sampleRate defaults to 16kHz.
func NewDecoder(ffmpegPath string, sampleRate int, opts ...DecoderOption) *Decoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	d := &Decoder{
		FFmpegPath: ffmpegPath,
		SampleRate: sampleRate,
		run:        runCommand,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load decodes the recording at path into a mono Buffer.
func (d *Decoder) Load(ctx context.Context, path string) (*Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, ok, err := d.loadWAV(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
		}
		if ok {
			return buf, nil
		}
	}

	buf, err := d.loadFFmpeg(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return buf, nil
}

// loadWAV decodes PCM WAV at the target rate. ok is false when the file
// needs resampling or uses a layout this path does not handle.
func (d *Decoder) loadWAV(path string) (buf *Buffer, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if dec.Err() != nil || dec.NumChans == 0 {
		return nil, false, nil
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, false, nil
	}
	if int(dec.SampleRate) != d.SampleRate || dec.WavAudioFormat != 1 {
		return nil, false, nil
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, false, fmt.Errorf("reading wav: %w", err)
	}
	return &Buffer{
		Samples:    downmix(pcm, int(dec.BitDepth)),
		SampleRate: d.SampleRate,
	}, true, nil
}

// downmix averages interleaved channels and scales ints to [-1.0, 1.0].
func downmix(pcm *goaudio.IntBuffer, bitDepth int) []float32 {
	channels := 1
	if pcm.Format != nil && pcm.Format.NumChannels > 1 {
		channels = pcm.Format.NumChannels
	}
	scale := float32(int64(1) << (bitDepth - 1))

	frames := len(pcm.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += pcm.Data[i*channels+c]
		}
		samples[i] = float32(sum) / float32(channels) / scale
	}
	return samples
}

func (d *Decoder) loadFFmpeg(ctx context.Context, path string) (*Buffer, error) {
	// ffmpeg -i input -ac 1 -ar 16000 -f s16le -
	out, err := d.run(ctx, d.FFmpegPath,
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ac", "1", "-ar", strconv.Itoa(d.SampleRate),
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	return &Buffer{
		Samples:    s16leToFloat32(out),
		SampleRate: d.SampleRate,
	}, nil
}

// s16leToFloat32 converts little-endian signed 16-bit PCM to float32.
// A trailing odd byte is ignored.
func s16leToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
