package knowledge

import (
	"fmt"
	"os"
	"strings"
)

// AppendArchive appends bullets to the archive file, stamped with date.
// Idempotent: a bullet whose id already appears in the archive is not
// duplicated. Text and counters are preserved verbatim (spec.md Section
// 4.5, "Archival is idempotent and preserves the bullet's text and
// counters verbatim").
func (s *Store) AppendArchive(bullets []Bullet, date string) error {
	if len(bullets) == 0 {
		return nil
	}
	if err := s.Guard(s.archivePath); err != nil {
		return err
	}

	existingIDs, err := s.archivedIDs()
	if err != nil {
		return err
	}

	var b strings.Builder
	if existing, err := os.ReadFile(s.archivePath); err == nil {
		b.Write(existing)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("reading archive %s: %w", s.archivePath, err)
	}

	wrote := false
	for _, bullet := range bullets {
		if existingIDs[bullet.ID] {
			continue
		}
		fmt.Fprintf(&b, "<!-- archived: %s -->\n", date)
		b.WriteString(RenderBullet(bullet))
		b.WriteString("\n\n")
		wrote = true
	}
	if !wrote {
		return nil
	}

	return writeFileAtomic(s.archivePath, []byte(b.String()))
}

// archivedIDs returns the set of bullet ids already present in the
// archive file, used to keep AppendArchive idempotent.
func (s *Store) archivedIDs() (map[string]bool, error) {
	data, err := os.ReadFile(s.archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, fmt.Errorf("reading archive %s: %w", s.archivePath, err)
	}

	ids := map[string]bool{}
	for _, line := range strings.Split(string(data), "\n") {
		if m := bulletLineRe.FindStringSubmatch(line); m != nil {
			ids[strings.TrimSpace(m[1])] = true
		}
	}
	return ids, nil
}
