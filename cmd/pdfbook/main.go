package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kpkanth7/pdfbook/internal/assemble"
	"github.com/kpkanth7/pdfbook/internal/chunker"
	"github.com/kpkanth7/pdfbook/internal/config"
	"github.com/kpkanth7/pdfbook/internal/document"
	"github.com/kpkanth7/pdfbook/internal/job"
	"github.com/kpkanth7/pdfbook/internal/jobstore"
	"github.com/kpkanth7/pdfbook/internal/player"
	"github.com/kpkanth7/pdfbook/internal/telemetry"
	"github.com/kpkanth7/pdfbook/internal/tts"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath string
		input      string
		mode       string
		format     string
		voice      string
		rate       int
		chunkSize  int
		resume     bool
		listVoices bool
		showVer    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&input, "input", "", "PDF file to convert")
	flag.StringVar(&mode, "mode", "", "speak, save or both")
	flag.StringVar(&format, "format", "", "Output format: wav or mp3")
	flag.StringVar(&voice, "voice", "", "Voice name (engine specific)")
	flag.IntVar(&rate, "rate", 0, "Speaking rate in words per minute (80-350)")
	flag.IntVar(&chunkSize, "chunk-size", 0, "Maximum characters per chunk")
	flag.BoolVar(&resume, "resume", false, "Resume the last job for this document")
	flag.BoolVar(&listVoices, "list-voices", false, "List available voices and exit")
	flag.BoolVar(&showVer, "version", false, "Print version and exit")
	flag.Parse()

	if showVer {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	applyFlags(&cfg, mode, format, voice, rate, chunkSize)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.Telemetry.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, input, resume, listVoices, logger); err != nil {
		logger.Error("pdfbook failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// applyFlags lets explicit CLI flags win over file and environment config.
func applyFlags(cfg *config.Config, mode, format, voice string, rate, chunkSize int) {
	if mode != "" {
		cfg.Mode = mode
	}
	if format != "" {
		cfg.Output.Format = format
	}
	if voice != "" {
		cfg.TTS.Voice = voice
	}
	if rate != 0 {
		cfg.TTS.Rate = rate
	}
	if chunkSize != 0 {
		cfg.Chunker.MaxChars = chunkSize
	}
}

func run(ctx context.Context, cfg config.Config, input string, resume, listVoices bool, logger *slog.Logger) error {
	synth, err := tts.New(cfg.TTS)
	if err != nil {
		return err
	}

	if listVoices {
		voices, err := synth.Voices(ctx)
		if err != nil {
			return err
		}
		for _, v := range voices {
			fmt.Printf("%-28s %s\n", v.Name, v.Language)
		}
		return nil
	}

	if input == "" {
		return errors.New("no input file: pass -input <file.pdf>")
	}

	metrics, shutdownMetrics, err := telemetry.Setup(cfg.Telemetry, cfg.AppName, logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shCtx); err != nil {
			logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	doc, err := document.NewExtractor(logger).Extract(ctx, input)
	if err != nil {
		return err
	}
	chunks, err := chunker.Split(doc.Text, cfg.Chunker.MaxChars)
	if err != nil {
		return err
	}
	logger.Info("document chunked",
		slog.Int("chunks", len(chunks)),
		slog.Int("max_chars", cfg.Chunker.MaxChars))

	store, err := jobstore.Open(ctx, cfg.JobStore, logger)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	j, err := resolveJob(ctx, store, doc, chunks, cfg, resume, logger)
	if err != nil {
		return err
	}

	var p job.Player
	if cfg.Mode == config.ModeSpeak || cfg.Mode == config.ModeBoth {
		pl, err := player.New(cfg.Player, logger)
		if err != nil {
			return err
		}
		p = pl
	}

	artifactDir, cleanup, err := resolveArtifactDir(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	baseName := cfg.Output.BaseName
	if baseName == "" {
		baseName = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}

	runner := job.NewRunner(synth, store, p, metrics,
		time.Duration(cfg.TTS.TimeoutMS)*time.Millisecond, logger)
	runErr := runner.Run(ctx, j, chunks, artifactDir, baseName)
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		fmt.Printf("Interrupted. Job %s: %s. Rerun with -resume to continue.\n", j.ID, j.Report())
		return nil
	}

	fmt.Printf("Job %s: %s\n", j.ID, j.Report())

	if cfg.Mode != config.ModeSpeak {
		res, asmErr := assemble.New(logger).Assemble(ctx, j, artifactDir, baseName, cfg.Output.Format)
		switch {
		case errors.Is(asmErr, assemble.ErrTranscodeUnavailable):
			fmt.Println("MP3 requested but ffmpeg is not installed; WAV files kept:", artifactDir)
		case asmErr != nil:
			return asmErr
		}
		if len(res.Missing) > 0 {
			fmt.Printf("Warning: incomplete audio, %s (missing chunks %v)\n",
				res.Available(len(j.Results)), res.Missing)
		}
		printOutputs(res, artifactDir)
	}

	return runErr
}

// resolveJob reuses the latest stored job for this document when resuming,
// as long as it was chunked the same way; anything else gets a fresh job.
func resolveJob(ctx context.Context, store *jobstore.Store, doc document.Document, chunks []chunker.Chunk, cfg config.Config, resume bool, logger *slog.Logger) (*job.Job, error) {
	if resume {
		prior, err := store.FindByChecksum(ctx, doc.Checksum)
		switch {
		case err == nil && prior.ChunkSize == cfg.Chunker.MaxChars && len(prior.Results) == len(chunks):
			succeeded, failed, pending := prior.Counts()
			logger.Info("resuming job",
				slog.String("job_id", prior.ID),
				slog.Int("succeeded", succeeded),
				slog.Int("failed", failed),
				slog.Int("pending", pending))
			// Failed chunks are re-attempted on resume, and the current
			// voice/rate/mode settings apply to them.
			for i := range prior.Results {
				if prior.Results[i].Status == job.StatusFailed {
					prior.Results[i] = job.ChunkResult{Index: i, Status: job.StatusPending}
				}
			}
			// Succeeded chunks whose audio is gone (a speak run's temp
			// artifacts, a cleaned output dir) are synthesized again too.
			if reset := prior.InvalidateMissingArtifacts(); reset > 0 {
				logger.Info("artifacts missing on disk, chunks reset to pending",
					slog.Int("chunks", reset))
			}
			prior.Voice = cfg.TTS.Voice
			prior.Rate = cfg.TTS.Rate
			prior.Mode = cfg.Mode
			return prior, nil
		case err == nil:
			logger.Warn("stored job does not match current chunking, starting over",
				slog.String("job_id", prior.ID))
		case !errors.Is(err, jobstore.ErrNotFound):
			return nil, err
		default:
			logger.Info("no stored job for this document, starting fresh")
		}
	}

	j := job.New(doc, chunks, cfg.Chunker.MaxChars, cfg.TTS.Voice, cfg.TTS.Rate, cfg.Mode)
	if err := store.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("record job: %w", err)
	}
	return j, nil
}

// resolveArtifactDir picks where chunk audio lands: the configured output
// directory for save/both, or a temp directory discarded after speak-only
// runs.
func resolveArtifactDir(cfg config.Config) (string, func(), error) {
	if cfg.Mode == config.ModeSpeak {
		dir, err := os.MkdirTemp("", "pdfbook_*")
		if err != nil {
			return "", nil, fmt.Errorf("create temp dir: %w", err)
		}
		return dir, func() { os.RemoveAll(dir) }, nil
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create output dir: %w", err)
	}
	return cfg.Output.Dir, func() {}, nil
}

func printOutputs(res assemble.Result, dir string) {
	if len(res.MP3s) > 0 {
		fmt.Printf("Saved %d mp3 file(s) in %s\n", len(res.MP3s), dir)
		return
	}
	if res.Combined != "" {
		fmt.Println("Combined audio:", res.Combined)
	}
	if len(res.Files) > 0 {
		fmt.Printf("Saved %d wav chunk file(s) in %s\n", len(res.Files), dir)
	}
}
