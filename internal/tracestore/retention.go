package tracestore

import (
	"sort"
	"time"

	"github.com/sjarmak/acebeads/internal/reflector"
)

// RetentionPolicy bounds how many traces are kept live per work-item and
// how old a retained trace may get before archival (spec.md Section 4.7).
type RetentionPolicy struct {
	MaxTracesPerBead int
	MaxAgeInDays     int
	ArchivePath      string
	Now              func() time.Time
}

func (p RetentionPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Apply reads the trace log, applies the retention policy, rewrites the
// retained file in chronological order, and moves excess-and-aged
// traces to the archive file. It returns how many traces were archived.
func (s *Store) Apply(policy RetentionPolicy) (archived int, err error) {
	result, err := s.ReadAll()
	if err != nil {
		return 0, err
	}

	byBead := map[string][]reflector.ExecutionTrace{}
	var order []string
	for _, t := range result.Traces {
		if _, ok := byBead[t.BeadID]; !ok {
			order = append(order, t.BeadID)
		}
		byBead[t.BeadID] = append(byBead[t.BeadID], t)
	}

	var retained, toArchive []reflector.ExecutionTrace
	for _, bead := range order {
		traces := byBead[bead]
		sort.SliceStable(traces, func(i, j int) bool {
			return traces[i].Timestamp < traces[j].Timestamp
		})

		keep := traces
		if policy.MaxTracesPerBead > 0 && len(traces) > policy.MaxTracesPerBead {
			excess := traces[:len(traces)-policy.MaxTracesPerBead]
			keep = traces[len(traces)-policy.MaxTracesPerBead:]

			for _, t := range excess {
				if policy.isAged(t, policy.now()) {
					toArchive = append(toArchive, t)
				} else {
					keep = append([]reflector.ExecutionTrace{t}, keep...)
				}
			}
		}

		retained = append(retained, keep...)
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].Timestamp < retained[j].Timestamp
	})

	if len(toArchive) > 0 {
		if err := appendArchive(policy.ArchivePath, toArchive); err != nil {
			return 0, err
		}
	}

	if err := s.rewrite(retained); err != nil {
		return 0, err
	}

	return len(toArchive), nil
}

func (p RetentionPolicy) isAged(t reflector.ExecutionTrace, now time.Time) bool {
	if p.MaxAgeInDays <= 0 {
		return true
	}
	ts, err := time.Parse(time.RFC3339, t.Timestamp)
	if err != nil {
		return true
	}
	return now.Sub(ts) > time.Duration(p.MaxAgeInDays)*24*time.Hour
}
