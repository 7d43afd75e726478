package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

type journalWrite struct {
	query string
	args  []any
}

// Journal is a sqlite log of runs and per-item outcomes
type Journal struct {
	db         *sql.DB
	writeChan  chan journalWrite
	writerDone sync.WaitGroup
}

// RunRecord is one row of run history
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Total        int
	Succeeded    int
	Failed       int
	Aborted      bool
	Stamp        bool
	OutputDir    string
	BytesWritten int64
}

// ItemRecord is one photograph's outcome within a run
type ItemRecord struct {
	Path       string
	OutputPath string
	Timestamp  *time.Time
	Bytes      int64
	Error      string
}

// DefaultJournalPath returns ~/.film-exif/journal.db
func DefaultJournalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".film-exif", "journal.db")
	}
	return filepath.Join(home, ".film-exif", "journal.db")
}

// OpenJournal opens or creates the journal database
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	// WAL keeps history reads from blocking the writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0,
		stamp INTEGER NOT NULL,
		output_dir TEXT,
		bytes_written INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS items (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		path TEXT NOT NULL,
		output_path TEXT,
		capture_time INTEGER,
		bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	j := &Journal{
		db:        db,
		writeChan: make(chan journalWrite, 1000),
	}

	// Single writer goroutine serialises all inserts
	j.writerDone.Add(1)
	go j.writerLoop()

	return j, nil
}

func (j *Journal) writerLoop() {
	defer j.writerDone.Done()

	for w := range j.writeChan {
		if _, err := j.db.Exec(w.query, w.args...); err != nil {
			log.Warn().Err(err).Msg("journal write failed")
		}
	}
}

// Close flushes pending writes and closes the database
func (j *Journal) Close() error {
	if j.writeChan != nil {
		close(j.writeChan)
		j.writerDone.Wait()
		j.writeChan = nil
	}
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// BeginRun inserts the run row synchronously and returns its id
func (j *Journal) BeginRun(req *RunRequest, total int) (string, error) {
	id := uuid.NewString()
	_, err := j.db.Exec(`
		INSERT INTO runs (id, started_at, total, stamp, output_dir)
		VALUES (?, ?, ?, ?, ?)
	`, id, time.Now().Unix(), total, req.Stamp, req.OutputDir)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Record queues one item outcome (non-blocking)
func (j *Journal) Record(runID string, r ItemResult) error {
	var capture sql.NullInt64
	if r.Timestamp != nil {
		capture = sql.NullInt64{Int64: r.Timestamp.Unix(), Valid: true}
	}
	var errText sql.NullString
	if r.Err != nil {
		errText = sql.NullString{String: r.Err.Error(), Valid: true}
	}
	return j.enqueue(`
		INSERT INTO items (run_id, seq, path, output_path, capture_time, bytes, error)
		VALUES (?, (SELECT COUNT(*) FROM items WHERE run_id = ?), ?, ?, ?, ?, ?)
	`, runID, runID, r.Item.Path, r.OutputPath, capture, r.Bytes, errText)
}

// FinishRun queues the final counters of a run
func (j *Journal) FinishRun(s *RunSummary) error {
	return j.enqueue(`
		UPDATE runs SET finished_at = ?, succeeded = ?, failed = ?, aborted = ?, bytes_written = ?
		WHERE id = ?
	`, time.Now().Unix(), s.Succeeded, s.Failed, s.Aborted, s.BytesWritten, s.RunID)
}

func (j *Journal) enqueue(query string, args ...any) error {
	select {
	case j.writeChan <- journalWrite{query: query, args: args}:
		return nil
	default:
		return fmt.Errorf("journal write queue full")
	}
}

// History returns the most recent runs, newest first
func (j *Journal) History(limit int) ([]RunRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, started_at, finished_at, total, succeeded, failed, aborted, stamp,
		       COALESCE(output_dir, ''), bytes_written
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &started, &finished, &r.Total, &r.Succeeded, &r.Failed,
			&r.Aborted, &r.Stamp, &r.OutputDir, &r.BytesWritten); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			t := time.Unix(finished.Int64, 0)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Items returns the recorded outcomes of one run in processing order
func (j *Journal) Items(runID string) ([]ItemRecord, error) {
	rows, err := j.db.Query(`
		SELECT path, COALESCE(output_path, ''), capture_time, bytes, COALESCE(error, '')
		FROM items
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var it ItemRecord
		var capture sql.NullInt64
		if err := rows.Scan(&it.Path, &it.OutputPath, &capture, &it.Bytes, &it.Error); err != nil {
			return nil, err
		}
		if capture.Valid {
			t := time.Unix(capture.Int64, 0).UTC()
			it.Timestamp = &t
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetStats returns journal totals
func (j *Journal) GetStats() (runs, items, failures int64) {
	j.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs)
	j.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&items)
	j.db.QueryRow("SELECT COUNT(*) FROM items WHERE error IS NOT NULL AND error != ''").Scan(&failures)
	return
}
