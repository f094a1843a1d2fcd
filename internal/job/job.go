package job

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kpkanth7/pdfbook/internal/chunker"
	"github.com/kpkanth7/pdfbook/internal/document"
)

// ChunkStatus is the lifecycle of one chunk's synthesis. A result moves off
// pending exactly once.
type ChunkStatus string

const (
	StatusPending   ChunkStatus = "pending"
	StatusSucceeded ChunkStatus = "succeeded"
	StatusFailed    ChunkStatus = "failed"
)

// ReasonAbortedUpstream marks chunks never attempted because a fatal error
// stopped the job before they were reached.
const ReasonAbortedUpstream = "aborted-upstream"

// ChunkResult is the per-chunk outcome, ordered by Index inside a Job.
type ChunkResult struct {
	Index        int
	Status       ChunkStatus
	ArtifactPath string
	Error        string
}

// Status is the job-level outcome derived from the chunk results.
type Status string

const (
	JobComplete Status = "complete"
	JobPartial  Status = "partial"
	JobFailed   Status = "failed"
	JobPending  Status = "pending"
)

// Job collects the synthesis outcomes for one document.
type Job struct {
	ID        string
	Source    string
	Checksum  string
	ChunkSize int
	Voice     string
	Rate      int
	Mode      string
	CreatedAt time.Time
	Results   []ChunkResult
}

// New creates a fresh job for doc with one pending result per chunk.
func New(doc document.Document, chunks []chunker.Chunk, chunkSize int, voice string, rate int, mode string) *Job {
	j := &Job{
		ID:        uuid.NewString(),
		Source:    doc.Source,
		Checksum:  doc.Checksum,
		ChunkSize: chunkSize,
		Voice:     voice,
		Rate:      rate,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
		Results:   make([]ChunkResult, len(chunks)),
	}
	for i := range j.Results {
		j.Results[i] = ChunkResult{Index: i, Status: StatusPending}
	}
	return j
}

// Status derives the overall outcome: complete iff every chunk succeeded,
// pending while no chunk has an outcome yet, failed iff chunks failed and
// none succeeded, partial otherwise. An empty job is complete.
func (j *Job) Status() Status {
	succeeded, failed, pending := j.Counts()
	if failed == 0 && pending == 0 {
		return JobComplete
	}
	if succeeded == 0 && failed == 0 {
		return JobPending
	}
	if succeeded == 0 {
		return JobFailed
	}
	return JobPartial
}

// Counts tallies results per status.
func (j *Job) Counts() (succeeded, failed, pending int) {
	for _, r := range j.Results {
		switch r.Status {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		default:
			pending++
		}
	}
	return succeeded, failed, pending
}

// Report renders the user-facing summary. It always distinguishes full,
// partial and failed outcomes; chunks are never dropped silently.
func (j *Job) Report() string {
	succeeded, _, _ := j.Counts()
	total := len(j.Results)
	switch j.Status() {
	case JobComplete:
		return fmt.Sprintf("fully succeeded (%d chunks)", total)
	case JobPending:
		return fmt.Sprintf("not started (%d chunks pending)", total)
	case JobFailed:
		return fmt.Sprintf("failed (0 of %d chunks)", total)
	default:
		return fmt.Sprintf("partially succeeded (%d of %d chunks)", succeeded, total)
	}
}

// InvalidateMissingArtifacts demotes succeeded results whose artifact file
// is gone back to pending, and reports how many it reset. A stored job can
// outlive its audio: speak-mode artifacts land in a temp directory deleted
// after the run, so a later save-mode resume must synthesize them again
// rather than vouch for paths that no longer exist.
func (j *Job) InvalidateMissingArtifacts() int {
	reset := 0
	for i, r := range j.Results {
		if r.Status != StatusSucceeded {
			continue
		}
		if _, err := os.Stat(r.ArtifactPath); err != nil {
			j.Results[i] = ChunkResult{Index: i, Status: StatusPending}
			reset++
		}
	}
	return reset
}

// ArtifactName is the deterministic per-chunk file name. Part numbers are
// 1-based so file listings read naturally.
func ArtifactName(base string, index int) string {
	return fmt.Sprintf("%s_part%03d.wav", base, index+1)
}
