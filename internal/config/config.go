package config

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelSizes lists the whisper model sizes from smallest to largest.
var ModelSizes = []string{"tiny", "base", "small", "medium", "large"}

// Config holds all application configuration.
type Config struct {
	ModelSize  string           `yaml:"model_size"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Input      InputConfig      `yaml:"input"`
	Output     OutputConfig     `yaml:"output"`
	Audio      AudioConfig      `yaml:"audio"`
	LogLevel   string           `yaml:"log_level"`
}

// TranscribeConfig selects and configures the speech-to-text backend.
type TranscribeConfig struct {
	Backend   string       `yaml:"backend"`    // "whisper" or "openai"
	ModelPath string       `yaml:"model_path"` // ggml model; derived from model_size when empty
	Language  string       `yaml:"language"`   // empty = auto-detect
	OpenAI    OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig holds settings for OpenAI-compatible transcription endpoints.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ChunkingConfig controls how long recordings are split into windows.
type ChunkingConfig struct {
	WindowMinutes  float64 `yaml:"window_minutes"`
	OverlapSeconds float64 `yaml:"overlap_seconds"`
	MinModelSize   string  `yaml:"min_model_size"` // chunk only at or above this size
}

// InputConfig selects which recordings are processed.
type InputConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

// OutputConfig controls where transcripts are written.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	WindowFiles bool   `yaml:"window_files"` // write <stem>_partNN.txt per window
}

// AudioConfig holds decoding settings.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	FFmpegPath string `yaml:"ffmpeg_path"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-batch")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the directory downloaded models are stored in.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(home, ".local", "share", "gostt-batch", "models")
}

// WhisperModelFile returns the ggml file name for a model size.
func WhisperModelFile(size string) string {
	if size == "large" {
		size = "large-v3"
	}
	return "ggml-" + size + ".bin"
}

// Default returns a Config with sensible default values.
func Default() *Config {
	cfg := defaults()
	cfg.resolve()
	return cfg
}

func defaults() *Config {
	return &Config{
		ModelSize: "large",
		Transcribe: TranscribeConfig{
			Backend: "whisper",
			OpenAI: OpenAIConfig{
				Model:     "whisper-1",
				APIKeyEnv: "OPENAI_API_KEY",
			},
		},
		Chunking: ChunkingConfig{
			WindowMinutes:  1,
			OverlapSeconds: 10,
			MinModelSize:   "medium",
		},
		Input: InputConfig{
			Dir:        ".",
			Extensions: []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"},
		},
		Output: OutputConfig{
			Dir:         "transcriptions",
			WindowFiles: true,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			FFmpegPath: "ffmpeg",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.resolve()

	return cfg, nil
}

// resolve expands paths and derives the model path from the model size.
func (c *Config) resolve() {
	if c.Transcribe.ModelPath == "" && c.ModelSize != "" {
		c.Transcribe.ModelPath = filepath.Join(DefaultModelsDir(), WhisperModelFile(c.ModelSize))
	}
	c.Transcribe.ModelPath = expandTilde(c.Transcribe.ModelPath)
	c.Input.Dir = expandTilde(c.Input.Dir)
	c.Output.Dir = expandTilde(c.Output.Dir)
	c.Audio.FFmpegPath = expandTilde(c.Audio.FFmpegPath)
	for i, ext := range c.Input.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Input.Extensions[i] = ext
	}
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if sizeRank(c.ModelSize) < 0 {
		return fmt.Errorf("model_size must be one of %s, got %q", strings.Join(ModelSizes, ", "), c.ModelSize)
	}

	switch c.Transcribe.Backend {
	case "whisper":
		if c.Transcribe.ModelPath == "" {
			return fmt.Errorf("transcribe.model_path must not be empty for whisper backend")
		}
	case "openai":
		if c.Transcribe.OpenAI.Model == "" {
			return fmt.Errorf("transcribe.openai.model must not be empty for openai backend")
		}
		if c.Transcribe.OpenAI.APIKeyEnv == "" {
			return fmt.Errorf("transcribe.openai.api_key_env must not be empty for openai backend")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"whisper\" or \"openai\", got %q", c.Transcribe.Backend)
	}

	if c.Chunking.WindowMinutes <= 0 {
		return fmt.Errorf("chunking.window_minutes must be > 0")
	}
	// Transcript starts are whole seconds, so window boundaries must be too.
	if c.WindowLength()%time.Second != 0 {
		return fmt.Errorf("chunking.window_minutes must be a whole number of seconds, got %s", c.WindowLength())
	}
	if c.Chunking.OverlapSeconds < 0 || c.Overlap() >= c.WindowLength() {
		return fmt.Errorf("chunking.overlap_seconds must be >= 0 and shorter than the window, got %gs", c.Chunking.OverlapSeconds)
	}
	if sizeRank(c.Chunking.MinModelSize) < 0 {
		return fmt.Errorf("chunking.min_model_size must be one of %s, got %q", strings.Join(ModelSizes, ", "), c.Chunking.MinModelSize)
	}

	if c.Input.Dir == "" {
		return fmt.Errorf("input.dir must not be empty")
	}
	if len(c.Input.Extensions) == 0 || slices.Contains(c.Input.Extensions, "") {
		return fmt.Errorf("input.extensions must list at least one non-empty extension")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// WindowLength returns the nominal window length.
func (c *Config) WindowLength() time.Duration {
	return time.Duration(math.Round(c.Chunking.WindowMinutes * float64(time.Minute)))
}

// Overlap returns the read padding applied on each side of a window.
func (c *Config) Overlap() time.Duration {
	return time.Duration(c.Chunking.OverlapSeconds * float64(time.Second))
}

// ChunkingEnabled reports whether recordings are split into windows.
// Smaller models transcribe whole files in one pass.
func (c *Config) ChunkingEnabled() bool {
	rank := sizeRank(c.ModelSize)
	return rank >= 0 && rank >= sizeRank(c.Chunking.MinModelSize)
}

func sizeRank(size string) int {
	return slices.Index(ModelSizes, size)
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// default to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# gostt-batch configuration
#
# model_size: tiny | base | small | medium | large
# Recordings are split into overlapping windows when model_size is at or
# above chunking.min_model_size.
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the written path, or "" if a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	cfg := defaults()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
