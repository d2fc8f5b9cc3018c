package tracestore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/glebarez/go-sqlite"

	"github.com/sjarmak/acebeads/internal/reflector"
)

// Index is a queryable SQLite projection over the trace log. The JSONL
// file is the source of truth; the index is rebuilt from it when the
// database file is missing (an existing database is not checked against
// the log), the same relationship the teacher's audit index
// keeps with its daily JSONL files.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the SQLite index at dbPath, rebuilding it
// from the trace log at tracePath if the database file doesn't exist yet.
func OpenIndex(dbPath, tracePath string) (*Index, error) {
	fresh := false
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fresh = true
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite trace index %s: %w", dbPath, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS traces (
			trace_id   TEXT PRIMARY KEY,
			bead_id    TEXT NOT NULL DEFAULT '',
			ts         TEXT NOT NULL DEFAULT '',
			outcome    TEXT NOT NULL DEFAULT '',
			completed  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_trace_bead ON traces(bead_id);
		CREATE INDEX IF NOT EXISTS idx_trace_ts ON traces(ts);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating trace index schema: %w", err)
	}

	idx := &Index{db: db}

	if fresh {
		store := New(tracePath)
		result, err := store.ReadAll()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("rebuilding trace index from %s: %w", tracePath, err)
		}
		for _, trace := range result.Traces {
			idx.insert(trace)
		}
		if result.Skipped > 0 {
			slog.Warn("trace index rebuild skipped malformed lines", "count", result.Skipped)
		}
	}

	return idx, nil
}

// insert adds (or replaces) a trace in the index. Non-blocking — errors
// are logged but don't affect the JSONL log, the source of truth.
func (idx *Index) insert(t reflector.ExecutionTrace) {
	completed := 0
	if t.Completed {
		completed = 1
	}
	_, err := idx.db.Exec(
		`INSERT OR REPLACE INTO traces (trace_id, bead_id, ts, outcome, completed) VALUES (?, ?, ?, ?, ?)`,
		t.TraceID, t.BeadID, t.Timestamp, string(t.Outcome), completed,
	)
	if err != nil {
		slog.Error("sqlite trace index insert failed", "trace_id", t.TraceID, "error", err)
	}
}

// Insert indexes a newly appended trace.
func (idx *Index) Insert(t reflector.ExecutionTrace) {
	idx.insert(t)
}

// ByBead returns the trace ids recorded for bead, most recent first.
func (idx *Index) ByBead(bead string) ([]string, error) {
	rows, err := idx.db.Query(`SELECT trace_id FROM traces WHERE bead_id = ? ORDER BY ts DESC`, bead)
	if err != nil {
		return nil, fmt.Errorf("querying trace index: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning trace index row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}
