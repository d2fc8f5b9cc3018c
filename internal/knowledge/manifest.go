package knowledge

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional front-matter block at the top of the
// playbook file: a version string and per-section display weights.
type Manifest struct {
	Version  string          `yaml:"version"`
	Sections []ManifestEntry `yaml:"sections"`
}

// ManifestEntry names a section and its display weight.
type ManifestEntry struct {
	ID     string  `yaml:"id"`
	Weight float64 `yaml:"weight"`
}

const frontMatterDelim = "---"

// splitFrontMatter separates a leading "---\n...\n---\n" YAML block from
// the rest of the document. If no front matter is present, manifest is
// nil and body is the entire input.
func splitFrontMatter(text string) (*Manifest, string, error) {
	trimmed := strings.TrimLeft(text, "\n")
	if !strings.HasPrefix(trimmed, frontMatterDelim) {
		return nil, text, nil
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return nil, text, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelim {
			end = i
			break
		}
	}
	if end == -1 {
		// Unterminated front matter — treat the whole thing as body
		// rather than failing the entire playbook load.
		return nil, text, nil
	}

	yamlBlock := strings.Join(lines[1:end], "\n")
	var manifest Manifest
	if err := yaml.Unmarshal([]byte(yamlBlock), &manifest); err != nil {
		return nil, "", fmt.Errorf("invalid front matter: %w", err)
	}

	body := strings.Join(lines[end+1:], "\n")
	return &manifest, body, nil
}

// RenderFrontMatter serializes the manifest with keys sorted and
// sections sorted by id, for deterministic output (spec.md Section 6).
func RenderFrontMatter(m *Manifest) string {
	if m == nil {
		return ""
	}

	sections := make([]ManifestEntry, len(m.Sections))
	copy(sections, m.Sections)
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })

	var b strings.Builder
	b.WriteString(frontMatterDelim)
	b.WriteString("\n")
	fmt.Fprintf(&b, "sections:\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "  - id: %s\n    weight: %s\n", s.ID, formatWeight(s.Weight))
	}
	fmt.Fprintf(&b, "version: %s\n", quoteIfNeeded(m.Version))
	b.WriteString(frontMatterDelim)
	b.WriteString("\n")
	return b.String()
}

func formatWeight(w float64) string {
	s := fmt.Sprintf("%g", w)
	return s
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	return s
}
