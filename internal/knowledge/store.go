package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Store is the sole writer of the playbook file and its archive file.
// Every mutation is guarded against escaping the configured knowledge
// root and committed via write-to-temp-then-rename (design doc Section 9:
// "Scoped acquisition").
type Store struct {
	root         string
	playbookPath string
	archivePath  string
}

// NewStore constructs a Store rooted at root, guarding both the
// playbook and archive paths up front.
func NewStore(root, playbookPath, archivePath string) (*Store, error) {
	s := &Store{root: root, playbookPath: playbookPath, archivePath: archivePath}
	if err := s.Guard(playbookPath); err != nil {
		return nil, err
	}
	if err := s.Guard(archivePath); err != nil {
		return nil, err
	}
	return s, nil
}

// PlaybookPath returns the configured playbook file path.
func (s *Store) PlaybookPath() string { return s.playbookPath }

// ArchivePath returns the configured archive file path.
func (s *Store) ArchivePath() string { return s.archivePath }

// Guard rejects any write whose resolved path is not under the
// configured knowledge root. Failure is always a hard, fatal error
// (spec.md Section 7: "Write scope violation").
func (s *Store) Guard(path string) error {
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return fmt.Errorf("resolving knowledge root %s: %w", s.root, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path %s: %w", path, err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("write scope violation: %s escapes knowledge root %s", path, s.root)
	}
	return nil
}

// LoadBullets returns the playbook's bullets in file order, tagged with
// their enclosing section, plus the optional front-matter manifest.
// A missing playbook file is not an error — it yields an empty set.
func (s *Store) LoadBullets() ([]Bullet, *Manifest, error) {
	data, err := os.ReadFile(s.playbookPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("reading playbook %s: %w", s.playbookPath, err)
	}

	manifest, bullets, err := ParsePlaybook(data)
	if err != nil {
		return nil, nil, err
	}
	return bullets, manifest, nil
}

// WriteBullets serializes bullets grouped by section (alphabetical),
// bullets within each section sorted in canonical order (section asc,
// helpful desc, content asc — spec.md Section 4.3), and commits the
// result via write-to-temp-then-rename.
func (s *Store) WriteBullets(bullets []Bullet, manifest *Manifest) error {
	if err := s.Guard(s.playbookPath); err != nil {
		return err
	}

	sorted := make([]Bullet, len(bullets))
	copy(sorted, bullets)
	SortCanonical(sorted)

	var b strings.Builder
	if manifest != nil {
		b.WriteString(RenderFrontMatter(manifest))
		b.WriteString("\n")
	}

	bySection := make(map[string][]Bullet)
	var sections []string
	for _, bullet := range sorted {
		if _, ok := bySection[bullet.Section]; !ok {
			sections = append(sections, bullet.Section)
		}
		bySection[bullet.Section] = append(bySection[bullet.Section], bullet)
	}
	sort.Strings(sections)

	for i, section := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(RenderHeading(section))
		b.WriteString("\n\n")
		for j, bullet := range bySection[section] {
			if j > 0 {
				b.WriteString("\n")
			}
			b.WriteString(RenderBullet(bullet))
			b.WriteString("\n")
		}
	}

	return writeFileAtomic(s.playbookPath, []byte(b.String()))
}

// CounterDelta is an increment applied to a single bullet's counters.
type CounterDelta struct {
	HelpfulDelta int
	HarmfulDelta int
}

// IncrementCounters performs an in-place update of helpful/harmful
// counters for the bullets named in deltaMap (keyed by bullet id),
// preserving all other text in the playbook byte-for-byte. Bullets
// missing from the playbook are silently skipped (no-op).
func (s *Store) IncrementCounters(deltaMap map[string]CounterDelta) error {
	if len(deltaMap) == 0 {
		return nil
	}

	data, err := os.ReadFile(s.playbookPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading playbook %s: %w", s.playbookPath, err)
	}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		m := bulletLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := strings.TrimSpace(m[1])
		delta, ok := deltaMap[id]
		if !ok {
			continue
		}

		helpful, _ := strconv.Atoi(m[2])
		harmful, _ := strconv.Atoi(m[3])
		helpful += delta.HelpfulDelta
		harmful += delta.HarmfulDelta

		extra := ""
		if strings.TrimSpace(m[4]) != "" {
			extra = ", " + strings.TrimSpace(m[4])
		}
		lines[i] = fmt.Sprintf("[Bullet #%s, helpful:%d, harmful:%d%s] %s", id, helpful, harmful, extra, m[5])
	}

	return writeFileAtomic(s.playbookPath, []byte(strings.Join(lines, "\n")))
}

// FindInsertPosition returns the raw line index immediately after the
// last bullet (or its provenance comment) belonging to section, scanning
// lines as already split on "\n". If the section heading is not present,
// ok is false and the caller is expected to skip the insertion.
func FindInsertPosition(lines []string, section string) (idx int, ok bool) {
	currentSection := ""
	sectionSeen := false
	lastBulletEnd := -1
	sectionHeadingLine := -1

	for i, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			currentSection = SectionID(m[2])
			if currentSection == section {
				sectionSeen = true
				sectionHeadingLine = i
				lastBulletEnd = i
			}
			continue
		}

		if currentSection != section {
			continue
		}

		if bulletLineRe.MatchString(line) {
			end := i
			if i+1 < len(lines) && provenanceRe.MatchString(strings.TrimSpace(lines[i+1])) {
				end = i + 1
			}
			lastBulletEnd = end
		}
	}

	if !sectionSeen {
		return 0, false
	}
	if lastBulletEnd == sectionHeadingLine {
		// Section exists but has no bullets yet: insert on the line right
		// after the heading.
		return lastBulletEnd + 1, true
	}
	return lastBulletEnd + 1, true
}

// writeFileAtomic commits content by writing to a sibling temp file and
// renaming over the destination, so a crash mid-write never leaves a
// truncated playbook (design doc Section 9: "Scoped acquisition").
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// SortCanonical sorts bullets by (section asc, helpful desc, content asc),
// the Merger's canonical presentation and in-file order (spec.md Section
// 4.3). Sorting is stable so successive serializations are byte-identical.
func SortCanonical(bullets []Bullet) {
	sort.SliceStable(bullets, func(i, j int) bool {
		a, b := bullets[i], bullets[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Helpful != b.Helpful {
			return a.Helpful > b.Helpful
		}
		return a.Content < b.Content
	})
}
