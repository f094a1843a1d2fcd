package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kpkanth7/pdfbook/internal/config"
	"github.com/kpkanth7/pdfbook/internal/job"
)

// ErrNotFound is returned when no job matches a lookup.
var ErrNotFound = errors.New("job not found")

// Store persists jobs and their per-chunk results so interrupted runs can be
// resumed. With retention_mode=ephemeral everything stays in memory and
// nothing touches disk.
type Store struct {
	db  *sql.DB
	cfg config.JobStoreConfig
	log *slog.Logger

	mu  sync.Mutex
	mem map[string]*job.Job
}

// Open initializes the job store according to config.
func Open(ctx context.Context, cfg config.JobStoreConfig, log *slog.Logger) (*Store, error) {
	logger := log.With(slog.String("component", "job-store"))
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: logger, mem: map[string]*job.Job{}}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: logger}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    checksum TEXT NOT NULL,
    chunk_size INTEGER NOT NULL,
    voice TEXT,
    rate INTEGER NOT NULL,
    mode TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chunk_results (
    job_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    status TEXT NOT NULL,
    artifact_path TEXT,
    error TEXT,
    PRIMARY KEY(job_id, idx),
    FOREIGN KEY(job_id) REFERENCES jobs(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_jobs_checksum_created ON jobs(checksum, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateJob stores a job together with its initial chunk results.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		clone := *j
		clone.Results = append([]job.ChunkResult(nil), j.Results...)
		s.mem[j.ID] = &clone
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO jobs(id, source, checksum, chunk_size, voice, rate, mode, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Source, j.Checksum, j.ChunkSize, j.Voice, j.Rate, j.Mode, j.CreatedAt); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	for _, r := range j.Results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_results(job_id, idx, status, artifact_path, error) VALUES(?, ?, ?, ?, ?)`,
			j.ID, r.Index, string(r.Status), r.ArtifactPath, r.Error); err != nil {
			return fmt.Errorf("insert chunk result: %w", err)
		}
	}
	return tx.Commit()
}

// SaveResult upserts one chunk result. Called after every chunk, so resume
// state never lags by more than the in-flight chunk.
func (s *Store) SaveResult(ctx context.Context, jobID string, res job.ChunkResult) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		stored, ok := s.mem[jobID]
		if !ok {
			return ErrNotFound
		}
		if res.Index < 0 || res.Index >= len(stored.Results) {
			return fmt.Errorf("chunk index %d out of range", res.Index)
		}
		stored.Results[res.Index] = res
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk_results(job_id, idx, status, artifact_path, error) VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, idx) DO UPDATE SET status=excluded.status,
		     artifact_path=excluded.artifact_path, error=excluded.error`,
		jobID, res.Index, string(res.Status), res.ArtifactPath, res.Error)
	if err != nil {
		return fmt.Errorf("save chunk result: %w", err)
	}
	return nil
}

// FindByChecksum returns the most recent job recorded for a document
// checksum, or ErrNotFound.
func (s *Store) FindByChecksum(ctx context.Context, checksum string) (*job.Job, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		var latest *job.Job
		for _, j := range s.mem {
			if j.Checksum != checksum {
				continue
			}
			if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
				latest = j
			}
		}
		if latest == nil {
			return nil, ErrNotFound
		}
		clone := *latest
		clone.Results = append([]job.ChunkResult(nil), latest.Results...)
		return &clone, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, checksum, chunk_size, voice, rate, mode, created_at
		 FROM jobs WHERE checksum = ? ORDER BY created_at DESC, id DESC LIMIT 1`, checksum)

	var j job.Job
	var createdAt time.Time
	if err := row.Scan(&j.ID, &j.Source, &j.Checksum, &j.ChunkSize, &j.Voice, &j.Rate, &j.Mode, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}
	j.CreatedAt = createdAt

	results, err := s.loadResults(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	j.Results = results
	return &j, nil
}

func (s *Store) loadResults(ctx context.Context, jobID string) ([]job.ChunkResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, status, artifact_path, error FROM chunk_results WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query chunk results: %w", err)
	}
	defer rows.Close()

	var results []job.ChunkResult
	for rows.Next() {
		var r job.ChunkResult
		var status string
		if err := rows.Scan(&r.Index, &status, &r.ArtifactPath, &r.Error); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		r.Status = job.ChunkStatus(status)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	return results, nil
}

// DeleteJob removes a job and its results, typically after assembly.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.mem, jobID)
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}
