package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/kpkanth7/pdfbook/internal/config"
	"github.com/kpkanth7/pdfbook/internal/job"
)

// ErrTranscodeUnavailable means no ffmpeg binary was found. WAV artifacts
// are always left intact when it is returned.
var ErrTranscodeUnavailable = errors.New("transcode unavailable: ffmpeg not found")

// Result is the assembled output set for one job.
type Result struct {
	// Files are the per-chunk WAV artifacts, in chunk order.
	Files []string
	// Missing lists chunk indexes with no artifact (failed or pending), so
	// callers can warn about incomplete audio instead of shipping it quietly.
	Missing []int
	// Combined is the single concatenated WAV, empty when the chunk formats
	// did not match or nothing succeeded.
	Combined string
	// MP3s are the transcoded outputs when mp3 was requested and ffmpeg ran.
	MP3s []string
}

// Available renders the "N of M chunks available" line for the user report.
func (r Result) Available(total int) string {
	return fmt.Sprintf("%d of %d chunks available", len(r.Files), total)
}

// Assembler turns a job's artifacts into the final audio output.
type Assembler struct {
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

func New(log *slog.Logger) *Assembler {
	return &Assembler{
		logger:   log.With(slog.String("component", "assembler")),
		lookPath: exec.LookPath,
	}
}

// Assemble collects the job's succeeded artifacts in chunk order, writes a
// combined WAV next to them, and optionally transcodes to MP3. A missing
// transcoder surfaces as ErrTranscodeUnavailable with the WAV result intact.
func (a *Assembler) Assemble(ctx context.Context, j *job.Job, outDir, baseName, format string) (Result, error) {
	var res Result
	for _, r := range j.Results {
		if r.Status != job.StatusSucceeded || r.ArtifactPath == "" {
			res.Missing = append(res.Missing, r.Index)
			continue
		}
		// The store can reference artifacts that are gone, e.g. after a
		// speak-mode run whose temp directory was discarded.
		if _, err := os.Stat(r.ArtifactPath); err != nil {
			a.logger.Warn("artifact missing on disk",
				slog.Int("chunk", r.Index),
				slog.String("path", r.ArtifactPath))
			res.Missing = append(res.Missing, r.Index)
			continue
		}
		res.Files = append(res.Files, r.ArtifactPath)
	}
	if len(res.Missing) > 0 {
		a.logger.Warn("assembling incomplete job",
			slog.String("job_id", j.ID),
			slog.Int("missing", len(res.Missing)))
	}
	if len(res.Files) == 0 {
		return res, nil
	}

	combined := filepath.Join(outDir, baseName+".wav")
	if err := a.combine(res.Files, combined); err != nil {
		a.logger.Warn("could not combine chunk audio, keeping per-chunk files",
			slog.String("error", err.Error()))
	} else {
		res.Combined = combined
	}

	if format != config.FormatMP3 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if _, err := a.lookPath("ffmpeg"); err != nil {
		return res, ErrTranscodeUnavailable
	}
	mp3s, err := a.transcode(res)
	if err != nil {
		return res, fmt.Errorf("transcode: %w", err)
	}
	res.MP3s = mp3s
	return res, nil
}

// combine decodes every chunk WAV and re-encodes the PCM as one file. All
// chunks must share a sample format; engines emit a constant one, but a
// resumed job that switched engines midway may not.
func (a *Assembler) combine(files []string, outPath string) error {
	var merged *audio.IntBuffer
	bitDepth := 16

	for _, path := range files {
		buf, depth, err := decodeWAV(path)
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if merged == nil {
			merged = buf
			bitDepth = depth
			continue
		}
		if buf.Format.SampleRate != merged.Format.SampleRate || buf.Format.NumChannels != merged.Format.NumChannels {
			return fmt.Errorf("chunk %s format %d/%d does not match %d/%d",
				path, buf.Format.SampleRate, buf.Format.NumChannels,
				merged.Format.SampleRate, merged.Format.NumChannels)
		}
		merged.Data = append(merged.Data, buf.Data...)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create combined wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, merged.Format.SampleRate, bitDepth, merged.Format.NumChannels, 1)
	if err := enc.Write(merged); err != nil {
		return fmt.Errorf("write combined wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close combined wav: %w", err)
	}
	return nil
}

func decodeWAV(path string) (*audio.IntBuffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	return buf, int(dec.BitDepth), nil
}

// transcode produces MP3s without touching the WAV inputs. The combined file
// is preferred; if combining failed earlier, each chunk is transcoded on its
// own so ordering survives in the file names.
func (a *Assembler) transcode(res Result) ([]string, error) {
	inputs := res.Files
	if res.Combined != "" {
		inputs = []string{res.Combined}
	}
	var outputs []string
	for _, in := range inputs {
		out := strings.TrimSuffix(in, filepath.Ext(in)) + ".mp3"
		err := ffmpeg.Input(in).
			Output(out, ffmpeg.KwArgs{"acodec": "libmp3lame", "qscale:a": 2}).
			OverWriteOutput().
			Run()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg %s: %w", in, err)
		}
		outputs = append(outputs, out)
	}
	a.logger.Info("transcoded to mp3", slog.Int("files", len(outputs)))
	return outputs, nil
}
