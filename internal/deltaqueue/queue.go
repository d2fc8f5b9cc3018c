package deltaqueue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Queue is a durable FIFO-ish store for proposed deltas, backed by a
// single JSON array file. Readers tolerate a missing file (empty queue);
// malformed JSON is rejected as a fatal parse error (spec.md Section 7:
// whole-file malformed queue is fatal).
type Queue struct {
	path string
}

// New returns a Queue backed by the JSON array file at path.
func New(path string) *Queue {
	return &Queue{path: path}
}

// Read returns all deltas currently in the queue, sorted by
// (section asc, created_at asc). A missing file yields an empty queue.
func (q *Queue) Read() ([]Delta, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading delta queue %s: %w", q.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var deltas []Delta
	if err := json.Unmarshal(data, &deltas); err != nil {
		return nil, fmt.Errorf("parsing delta queue %s: %w", q.path, err)
	}
	sortDeltas(deltas)
	return deltas, nil
}

// Write replaces the queue's full contents with all, sorted
// deterministically and written as pretty-printed (2-space indented) JSON.
func (q *Queue) Write(all []Delta) error {
	sorted := make([]Delta, len(all))
	copy(sorted, all)
	sortDeltas(sorted)

	if sorted == nil {
		sorted = []Delta{}
	}

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling delta queue: %w", err)
	}

	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp queue file: %w", err)
	}
	if err := os.Rename(tmpPath, q.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp queue file: %w", err)
	}
	return nil
}

// Enqueue appends batch to the queue, deduplicating by id (a delta
// already present with the same id is left untouched).
func (q *Queue) Enqueue(batch []Delta) error {
	existing, err := q.Read()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[d.ID] = true
	}
	for _, d := range batch {
		if seen[d.ID] {
			continue
		}
		existing = append(existing, d)
		seen[d.ID] = true
	}

	return q.Write(existing)
}

// Dequeue removes the deltas with the given ids from the queue.
func (q *Queue) Dequeue(ids []string) error {
	existing, err := q.Read()
	if err != nil {
		return err
	}

	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}

	var remaining []Delta
	for _, d := range existing {
		if remove[d.ID] {
			continue
		}
		remaining = append(remaining, d)
	}

	return q.Write(remaining)
}

// Clear empties the queue.
func (q *Queue) Clear() error {
	return q.Write(nil)
}

func sortDeltas(deltas []Delta) {
	sort.SliceStable(deltas, func(i, j int) bool {
		if deltas[i].Section != deltas[j].Section {
			return deltas[i].Section < deltas[j].Section
		}
		return deltas[i].CreatedAt < deltas[j].CreatedAt
	})
}
