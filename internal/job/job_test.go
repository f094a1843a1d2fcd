package job

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kpkanth7/pdfbook/internal/chunker"
	"github.com/kpkanth7/pdfbook/internal/config"
	"github.com/kpkanth7/pdfbook/internal/document"
)

func buildJob(t *testing.T, statuses ...ChunkStatus) *Job {
	t.Helper()
	doc := document.New("in.pdf", strings.Repeat("word ", 20))
	chunks, err := chunker.Split(doc.Text, 25)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	j := New(doc, chunks, 25, "", 170, config.ModeSave)
	if len(statuses) > len(j.Results) {
		t.Fatalf("test wants %d statuses but job has %d chunks", len(statuses), len(j.Results))
	}
	for i, s := range statuses {
		j.Results[i].Status = s
	}
	return j
}

func TestNewStartsPending(t *testing.T) {
	j := buildJob(t)
	if j.ID == "" {
		t.Fatal("job needs an id")
	}
	for _, r := range j.Results {
		if r.Status != StatusPending {
			t.Fatalf("fresh job should be all pending: %+v", r)
		}
	}
}

func TestStatusDerivation(t *testing.T) {
	j := buildJob(t)
	total := len(j.Results)

	for i := range j.Results {
		j.Results[i].Status = StatusSucceeded
	}
	if j.Status() != JobComplete {
		t.Fatalf("expected complete, got %s", j.Status())
	}
	if !strings.Contains(j.Report(), "fully succeeded") {
		t.Fatalf("unexpected report: %s", j.Report())
	}

	j.Results[1].Status = StatusFailed
	if j.Status() != JobPartial {
		t.Fatalf("expected partial, got %s", j.Status())
	}
	wantCount := strings.Contains(j.Report(), "partially succeeded")
	if !wantCount {
		t.Fatalf("unexpected report: %s", j.Report())
	}
	succeeded, failed, _ := j.Counts()
	if succeeded != total-1 || failed != 1 {
		t.Fatalf("unexpected counts: %d/%d", succeeded, failed)
	}

	for i := range j.Results {
		j.Results[i].Status = StatusFailed
	}
	if j.Status() != JobFailed {
		t.Fatalf("expected failed, got %s", j.Status())
	}
	if !strings.Contains(j.Report(), "failed") {
		t.Fatalf("unexpected report: %s", j.Report())
	}
}

func TestStatusPendingBeforeFirstOutcome(t *testing.T) {
	j := buildJob(t)
	if j.Status() != JobPending {
		t.Fatalf("untouched job should be pending, got %s", j.Status())
	}
	if !strings.Contains(j.Report(), "not started") {
		t.Fatalf("unexpected report for untouched job: %s", j.Report())
	}
}

func TestInvalidateMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	j := buildJob(t)
	for i := range j.Results {
		path := filepath.Join(dir, ArtifactName("book", i))
		if err := os.WriteFile(path, []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("write artifact: %v", err)
		}
		j.Results[i] = ChunkResult{Index: i, Status: StatusSucceeded, ArtifactPath: path}
	}
	if err := os.Remove(j.Results[0].ArtifactPath); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	if reset := j.InvalidateMissingArtifacts(); reset != 1 {
		t.Fatalf("expected 1 chunk reset, got %d", reset)
	}
	if j.Results[0].Status != StatusPending || j.Results[0].ArtifactPath != "" {
		t.Fatalf("dangling chunk should be pending again: %+v", j.Results[0])
	}
	for _, r := range j.Results[1:] {
		if r.Status != StatusSucceeded {
			t.Fatalf("chunk with live artifact must keep its result: %+v", r)
		}
	}
	// Idempotent once everything left points at real files.
	if reset := j.InvalidateMissingArtifacts(); reset != 0 {
		t.Fatalf("second pass should reset nothing, got %d", reset)
	}
}

func TestArtifactName(t *testing.T) {
	if got := ArtifactName("book", 0); got != "book_part001.wav" {
		t.Fatalf("unexpected name: %s", got)
	}
	if got := ArtifactName("book", 41); got != "book_part042.wav" {
		t.Fatalf("unexpected name: %s", got)
	}
}
