// Package rundb persists analysis-run summaries to sqlite. Persistence is
// opt-in behind the -db flag; a run that cannot be persisted still produced
// its report output.
package rundb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/dissect.report/internal/monitoring"
	"github.com/banshee-data/dissect.report/internal/pipeline"
)

// RunRecord is one persisted analysis run.
type RunRecord struct {
	RunID         string
	SourcePath    string
	TwoPass       bool
	ReadFilter    string
	DisplayFilter string
	Summary       pipeline.Summary
}

// ProtoCount is one per-protocol digest row for a run.
type ProtoCount struct {
	Protocol string
	Frames   uint64
	Bytes    uint64
}

// Persist writes a run summary and its per-protocol digests, creating the
// schema on first use. It returns the generated run ID.
func Persist(dbPath string, rec RunRecord, protos []ProtoCount) (string, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Create tables if they don't exist
	schema := `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			analysis_time TEXT NOT NULL,
			two_pass INTEGER NOT NULL,
			read_filter TEXT,
			display_filter TEXT,
			source_bytes INTEGER,
			records_read INTEGER,
			frames_accepted INTEGER,
			frames_rendered INTEGER,
			accepted_bytes INTEGER,
			duration_secs REAL
		);

		CREATE TABLE IF NOT EXISTS run_protocols (
			run_id TEXT,
			protocol TEXT NOT NULL,
			frames INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			PRIMARY KEY (run_id, protocol),
			FOREIGN KEY (run_id) REFERENCES analysis_runs(run_id)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		return "", fmt.Errorf("create schema: %w", err)
	}

	runID := rec.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	_, err = db.Exec(`
		INSERT INTO analysis_runs
		(run_id, source_path, analysis_time, two_pass, read_filter, display_filter,
		 source_bytes, records_read, frames_accepted, frames_rendered, accepted_bytes, duration_secs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.SourcePath,
		time.Now().Format(time.RFC3339),
		boolInt(rec.TwoPass),
		rec.ReadFilter,
		rec.DisplayFilter,
		rec.Summary.SourceSize,
		rec.Summary.RecordsRead,
		rec.Summary.Accepted,
		rec.Summary.Rendered,
		rec.Summary.Bytes,
		rec.Summary.Elapsed.Seconds(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, p := range protos {
		_, err := db.Exec(`
			INSERT OR REPLACE INTO run_protocols (run_id, protocol, frames, bytes)
			VALUES (?, ?, ?, ?)`,
			runID, p.Protocol, p.Frames, p.Bytes,
		)
		if err != nil {
			monitoring.Logf("warning: failed to insert protocol digest %s: %v", p.Protocol, err)
		}
	}

	return runID, nil
}

// LoadRun reads one persisted run back by ID.
func LoadRun(dbPath, runID string) (*RunRecord, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rec := &RunRecord{RunID: runID}
	var twoPass int
	var durationSecs float64
	err = db.QueryRow(`
		SELECT source_path, two_pass, read_filter, display_filter,
		       source_bytes, records_read, frames_accepted, frames_rendered, accepted_bytes, duration_secs
		FROM analysis_runs WHERE run_id = ?`, runID).Scan(
		&rec.SourcePath, &twoPass, &rec.ReadFilter, &rec.DisplayFilter,
		&rec.Summary.SourceSize, &rec.Summary.RecordsRead, &rec.Summary.Accepted,
		&rec.Summary.Rendered, &rec.Summary.Bytes, &durationSecs,
	)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	rec.TwoPass = twoPass != 0
	rec.Summary.Elapsed = time.Duration(durationSecs * float64(time.Second))
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
