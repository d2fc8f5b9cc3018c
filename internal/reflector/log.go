package reflector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// AppendLog appends insights to the newline-delimited JSON insights log
// at path, one object per line (spec.md Section 6). The file is opened
// in append mode so concurrent readers never see a partial rewrite.
func AppendLog(path string, insights []Insight) error {
	if len(insights) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening insights log %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, in := range insights {
		if err := enc.Encode(in); err != nil {
			return fmt.Errorf("encoding insight %s: %w", in.ID, err)
		}
	}
	return nil
}

// ReadLog reads every well-formed insight from the log at path. A
// missing file yields an empty set; malformed lines are skipped
// (spec.md Section 6: "Malformed lines are skipped on read").
func ReadLog(path string) ([]Insight, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening insights log %s: %w", path, err)
	}
	defer f.Close()

	var insights []Insight
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in Insight
		if err := json.Unmarshal(line, &in); err != nil {
			continue
		}
		insights = append(insights, in)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading insights log %s: %w", path, err)
	}
	return insights, nil
}
