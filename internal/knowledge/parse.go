package knowledge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	headingRe    = regexp.MustCompile(`^(#{2,3})\s+(.+?)\s*$`)
	bulletLineRe = regexp.MustCompile(`^\[Bullet #([^,\]]+), helpful:(\d+), harmful:(\d+)(?:, ([^\]]+))?\]\s*(.*)$`)
	aggregatedRe = regexp.MustCompile(`^Aggregated from (\d+) instances?$`)
	provenanceRe = regexp.MustCompile(`^<!--\s*deltaId=([^,]*),\s*sourceId=([^,]*),\s*createdAt=([^,]*),\s*hash=([^,]*?)\s*-->$`)
)

// ParsePlaybook parses a playbook markdown document into its optional
// front-matter manifest and its ordered bullets, each tagged with its
// enclosing section. Malformed bullet lines are skipped, not fatal —
// the playbook is a hand-edited document and must tolerate stray prose.
func ParsePlaybook(data []byte) (*Manifest, []Bullet, error) {
	text := string(data)

	manifest, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing playbook front matter: %w", err)
	}

	lines := strings.Split(body, "\n")

	var bullets []Bullet
	currentSection := ""

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := headingRe.FindStringSubmatch(line); m != nil {
			currentSection = SectionID(m[2])
			continue
		}

		m := bulletLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		b := Bullet{
			ID:      strings.TrimSpace(m[1]),
			Section: currentSection,
			Content: strings.TrimSpace(m[5]),
		}
		b.Helpful, _ = strconv.Atoi(m[2])
		b.Harmful, _ = strconv.Atoi(m[3])

		if extra := strings.TrimSpace(m[4]); extra != "" {
			if am := aggregatedRe.FindStringSubmatch(extra); am != nil {
				b.AggregatedFrom, _ = strconv.Atoi(am[1])
			}
		}

		// A provenance comment, if present, lives on the very next line.
		if i+1 < len(lines) {
			if pm := provenanceRe.FindStringSubmatch(strings.TrimSpace(lines[i+1])); pm != nil {
				b.Provenance = &Provenance{
					DeltaID:   strings.TrimSpace(pm[1]),
					SourceID:  strings.TrimSpace(pm[2]),
					CreatedAt: strings.TrimSpace(pm[3]),
					Hash:      strings.TrimSpace(pm[4]),
				}
				i++
			}
		}

		bullets = append(bullets, b)
	}

	return manifest, bullets, nil
}

// RenderBullet formats a single bullet line (plus its optional
// provenance comment line) in the canonical on-disk grammar.
func RenderBullet(b Bullet) string {
	var extra string
	if b.AggregatedFrom > 0 {
		unit := "instance"
		if b.AggregatedFrom != 1 {
			unit = "instances"
		}
		extra = fmt.Sprintf(", Aggregated from %d %s", b.AggregatedFrom, unit)
	}

	line := fmt.Sprintf("[Bullet #%s, helpful:%d, harmful:%d%s] %s",
		b.ID, b.Helpful, b.Harmful, extra, b.Content)

	if b.Provenance == nil {
		return line
	}

	comment := fmt.Sprintf("<!-- deltaId=%s, sourceId=%s, createdAt=%s, hash=%s -->",
		b.Provenance.DeltaID, b.Provenance.SourceID, b.Provenance.CreatedAt, b.Provenance.Hash)
	return line + "\n" + comment
}

// RenderHeading formats a section id back into a prose "## Title Case"
// heading for display. Section ids are path-like ("typescript/patterns");
// the rendered heading capitalizes each "/"-separated part and joins the
// parts with spaces ("## Typescript Patterns"), which SectionID maps back
// to the same id.
func RenderHeading(sectionID string) string {
	parts := strings.Split(sectionID, "/")
	for i, p := range parts {
		parts[i] = titleCase(p)
	}
	return "## " + strings.Join(parts, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
