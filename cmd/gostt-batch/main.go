package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/chaz8081/gostt-batch/internal/audio"
	"github.com/chaz8081/gostt-batch/internal/config"
	"github.com/chaz8081/gostt-batch/internal/models"
	"github.com/chaz8081/gostt-batch/internal/pipeline"
	"github.com/chaz8081/gostt-batch/internal/transcribe"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-batch/config.yaml)")
	inputDir := flag.String("dir", "", "directory to scan for recordings (overrides input.dir)")
	outputDir := flag.String("out", "", "directory to write transcripts to (overrides output.dir)")
	downloadModel := flag.Bool("download-model", false, "download the whisper model for model_size and exit")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
		} else {
			fmt.Printf("Wrote default config to %s\n", path)
		}
		return
	}

	// .env is optional; it usually carries OPENAI_API_KEY.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARNING: loading .env: %v", err)
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *inputDir != "" {
		cfg.Input.Dir = *inputDir
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *downloadModel {
		if err := models.DownloadWhisper(ctx, cfg.ModelSize, cfg.Transcribe.ModelPath, os.Stdout); err != nil {
			log.Fatalf("model download: %v", err)
		}
		return
	}

	printBanner(cfg)

	paths, err := pipeline.Discover(cfg.Input.Dir, cfg.Input.Extensions)
	if err != nil {
		log.Fatalf("input: %v", err)
	}
	if len(paths) == 0 {
		log.Printf("No recordings found in %s", cfg.Input.Dir)
		return
	}

	// Load the model once for the whole batch
	log.Printf("Loading %s transcriber...", cfg.Transcribe.Backend)
	modelStart := time.Now()
	tr, err := transcribe.New(cfg)
	if err != nil {
		log.Fatalf("Failed to load transcriber: %v\n\nRun 'gostt-batch -download-model' to fetch the whisper model.", err)
	}
	log.Printf("Transcriber loaded in %s", time.Since(modelStart).Round(time.Millisecond))

	proc := pipeline.NewProcessor(
		audio.NewDecoder(cfg.Audio.FFmpegPath, cfg.Audio.SampleRate),
		tr,
		pipeline.Options{
			Chunking:     cfg.ChunkingEnabled(),
			WindowLength: cfg.WindowLength(),
			Overlap:      cfg.Overlap(),
			OutputDir:    cfg.Output.Dir,
			WindowFiles:  cfg.Output.WindowFiles,
		},
		logger.With("run", uuid.NewString()),
	)

	report, err := proc.Run(ctx, paths)
	if cerr := tr.Close(); cerr != nil {
		log.Printf("WARNING: closing transcriber: %v", cerr)
	}
	if err != nil {
		log.Fatalf("batch: %v", err)
	}

	for _, f := range report.Files {
		if f.Err != nil {
			fmt.Printf("  FAILED  %s: %v\n", f.Path, f.Err)
			continue
		}
		fmt.Printf("  OK      %s -> %s (%d segments, %d warnings, %s)\n",
			f.Path, f.Output, f.Segments, len(f.Warnings), f.Elapsed.Round(time.Millisecond))
	}

	if report.Failed() == len(report.Files) {
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	chunking := "off (whole file)"
	if cfg.ChunkingEnabled() {
		chunking = fmt.Sprintf("%s windows, %s overlap", cfg.WindowLength(), cfg.Overlap())
	}

	fmt.Println("=== gostt-batch ===")
	fmt.Printf("  Backend:  %s\n", cfg.Transcribe.Backend)
	fmt.Printf("  Model:    %s (%s)\n", cfg.ModelSize, cfg.Transcribe.ModelPath)
	fmt.Printf("  Chunking: %s\n", chunking)
	fmt.Printf("  Input:    %s %v\n", cfg.Input.Dir, cfg.Input.Extensions)
	fmt.Printf("  Output:   %s\n", cfg.Output.Dir)
	fmt.Printf("  Log:      %s\n", cfg.LogLevel)
	fmt.Println("===================")
}
