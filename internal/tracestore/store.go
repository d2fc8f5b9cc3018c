// Package tracestore is the append-only JSONL log of execution traces
// and its retention policy (spec.md Section 4.7). The JSONL file is the
// source of truth; index.go provides a rebuildable SQLite projection
// for queries, the same relationship the teacher's audit package keeps
// between its daily JSONL files and its SQLite index.
package tracestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sjarmak/acebeads/internal/reflector"
)

// Store is the sole writer of the trace log file. Concurrent writers
// are not supported; the policy assumes one writer (the agent session)
// at a time (spec.md Section 4.7).
type Store struct {
	path string
}

// New returns a Store writing to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the configured trace log path.
func (s *Store) Path() string { return s.path }

// Append writes trace as one JSON line to the end of the log.
func (s *Store) Append(trace reflector.ExecutionTrace) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for trace log %s: %w", s.path, err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening trace log %s: %w", s.path, err)
	}
	defer f.Close()

	line, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshaling trace %s: %w", trace.TraceID, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to trace log %s: %w", s.path, err)
	}
	return nil
}

// ReadResult is the outcome of reading the trace log: the well-formed
// traces plus a count of lines skipped for being malformed.
type ReadResult struct {
	Traces  []reflector.ExecutionTrace
	Skipped int
}

// ReadAll reads every trace in the log in file order. A missing file is
// treated as empty, not an error (spec.md Section 4.7). Malformed lines
// are skipped with a counter bumped, matching the Reflector's failure
// semantics for malformed trace lines (spec.md Section 4.4).
func (s *Store) ReadAll() (ReadResult, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReadResult{}, nil
		}
		return ReadResult{}, fmt.Errorf("reading trace log %s: %w", s.path, err)
	}
	defer f.Close()

	var result ReadResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var trace reflector.ExecutionTrace
		if err := json.Unmarshal(line, &trace); err != nil {
			result.Skipped++
			continue
		}
		result.Traces = append(result.Traces, trace)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("scanning trace log %s: %w", s.path, err)
	}
	return result, nil
}

// rewrite replaces the trace log's contents with traces, in the given
// order, via write-to-temp-then-rename.
func (s *Store) rewrite(traces []reflector.ExecutionTrace) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, trace := range traces {
		line, err := json.Marshal(trace)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("marshaling trace %s: %w", trace.TraceID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing temp trace log %s: %w", tmpPath, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing temp trace log %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp trace log %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp trace log %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, s.path, err)
	}
	return nil
}

// appendArchive appends traces, in order, to the archive file at path.
func appendArchive(path string, traces []reflector.ExecutionTrace) error {
	if len(traces) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for archive %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, trace := range traces {
		line, err := json.Marshal(trace)
		if err != nil {
			return fmt.Errorf("marshaling archived trace %s: %w", trace.TraceID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("appending to archive %s: %w", path, err)
		}
	}
	return w.Flush()
}
