package job

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/kpkanth7/pdfbook/internal/chunker"
	"github.com/kpkanth7/pdfbook/internal/config"
	"github.com/kpkanth7/pdfbook/internal/telemetry"
	"github.com/kpkanth7/pdfbook/internal/tts"
)

// Recorder persists a chunk result as soon as it is known, so a crash loses
// at most the in-flight chunk.
type Recorder interface {
	SaveResult(ctx context.Context, jobID string, res ChunkResult) error
}

// Player plays one WAV artifact to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Runner drives per-chunk synthesis for a job, strictly in chunk order.
type Runner struct {
	synth    tts.Synthesizer
	recorder Recorder
	player   Player
	metrics  *telemetry.Metrics
	timeout  time.Duration
	logger   *slog.Logger
}

func NewRunner(synth tts.Synthesizer, recorder Recorder, player Player, metrics *telemetry.Metrics, timeout time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		synth:    synth,
		recorder: recorder,
		player:   player,
		metrics:  metrics,
		timeout:  timeout,
		logger:   log.With(slog.String("component", "job-runner")),
	}
}

// Run processes the job's chunks in index order. Succeeded chunks (from a
// resumed job) are skipped; transient synthesis errors are recorded and the
// job moves on; a fatal error marks every remaining chunk failed with
// ReasonAbortedUpstream and escapes to the caller. Cancellation is honoured
// at chunk boundaries only, leaving untouched chunks pending for resume.
func (r *Runner) Run(ctx context.Context, j *Job, chunks []chunker.Chunk, artifactDir, baseName string) error {
	if len(chunks) != len(j.Results) {
		return fmt.Errorf("job has %d results for %d chunks", len(j.Results), len(chunks))
	}

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			r.logger.Info("job cancelled", slog.String("job_id", j.ID), slog.Int("next_chunk", i))
			return err
		}
		if j.Results[i].Status == StatusSucceeded {
			r.logger.Debug("chunk already synthesized, skipping",
				slog.String("job_id", j.ID), slog.Int("chunk", i))
			continue
		}
		if err := r.runChunk(ctx, j, chunks[i], artifactDir, baseName); err != nil {
			if ctx.Err() != nil {
				// Interrupted mid-chunk. The chunk stays pending so a
				// resumed run retries it.
				r.logger.Info("job cancelled", slog.String("job_id", j.ID), slog.Int("chunk", i))
				return ctx.Err()
			}
			r.abortRemaining(ctx, j, i)
			return fmt.Errorf("job %s aborted at chunk %d: %w", j.ID, i, err)
		}
	}

	s, f, p := j.Counts()
	r.logger.Info("job finished",
		slog.String("job_id", j.ID),
		slog.String("status", string(j.Status())),
		slog.Int("succeeded", s), slog.Int("failed", f), slog.Int("pending", p))
	return nil
}

// runChunk attempts one chunk. It returns an error only for fatal failures;
// transient ones are folded into the result and nil is returned.
func (r *Runner) runChunk(ctx context.Context, j *Job, chunk chunker.Chunk, artifactDir, baseName string) error {
	outPath := filepath.Join(artifactDir, ArtifactName(baseName, chunk.Index))
	req := tts.Request{Text: chunk.Text, Voice: j.Voice, Rate: j.Rate}

	synthCtx, cancel := context.WithTimeout(ctx, r.timeout)
	started := time.Now()
	err := r.synth.Synthesize(synthCtx, req, outPath)
	cancel()
	r.metrics.ObserveSynthesis(ctx, time.Since(started), err == nil)

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tts.IsTransient(err) {
			r.logger.Warn("chunk synthesis failed, continuing",
				slog.String("job_id", j.ID),
				slog.Int("chunk", chunk.Index),
				slog.String("error", err.Error()))
			r.record(ctx, j, ChunkResult{Index: chunk.Index, Status: StatusFailed, Error: err.Error()})
			return nil
		}
		r.record(ctx, j, ChunkResult{Index: chunk.Index, Status: StatusFailed, Error: err.Error()})
		return err
	}

	if j.Mode == config.ModeSpeak || j.Mode == config.ModeBoth {
		if r.player == nil {
			return fmt.Errorf("mode %s requires a player", j.Mode)
		}
		if err := r.player.Play(ctx, outPath); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.record(ctx, j, ChunkResult{Index: chunk.Index, Status: StatusFailed, Error: err.Error()})
			return fmt.Errorf("playback: %w", err)
		}
	}

	r.record(ctx, j, ChunkResult{Index: chunk.Index, Status: StatusSucceeded, ArtifactPath: outPath})
	r.logger.Debug("chunk synthesized",
		slog.String("job_id", j.ID),
		slog.Int("chunk", chunk.Index),
		slog.Duration("took", time.Since(started)))
	return nil
}

// abortRemaining fails every chunk after a fatal error so the job report
// accounts for all of them.
func (r *Runner) abortRemaining(ctx context.Context, j *Job, from int) {
	for i := from + 1; i < len(j.Results); i++ {
		if j.Results[i].Status == StatusSucceeded {
			continue
		}
		r.record(ctx, j, ChunkResult{Index: i, Status: StatusFailed, Error: ReasonAbortedUpstream})
	}
}

func (r *Runner) record(ctx context.Context, j *Job, res ChunkResult) {
	j.Results[res.Index] = res
	if r.recorder == nil {
		return
	}
	// Persist with a short grace period even when the parent context is
	// already cancelled, so resume state stays consistent.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.recorder.SaveResult(saveCtx, j.ID, res); err != nil {
		r.logger.Warn("failed to persist chunk result",
			slog.String("job_id", j.ID),
			slog.Int("chunk", res.Index),
			slog.String("error", err.Error()))
	}
}
