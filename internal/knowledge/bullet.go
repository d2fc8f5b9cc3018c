// Package knowledge owns the playbook and its archive: parsing and
// serializing bullets, deriving section identity, and guarding every
// write against escaping the configured knowledge root.
//
// The Knowledge Store is the sole writer of the playbook file and the
// archive file. See design doc Section 4.1.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Bullet is a unit of durable advice in the playbook.
type Bullet struct {
	ID             string
	Section        string
	Content        string
	Helpful        int
	Harmful        int
	AggregatedFrom int // 0 means absent.
	Provenance     *Provenance
}

// Provenance links a bullet back to the delta and source that produced
// it. Back-references beyond this are reconstructed by scanning logs,
// never stored on the bullet itself (design doc Section 9).
type Provenance struct {
	DeltaID   string
	SourceID  string
	CreatedAt string
	Hash      string
}

// Hash returns the dedup key for a bullet: section "::" normalize(content).
func (b Bullet) Hash() string {
	return Hash(b.Section, b.Content)
}

// Valid reports whether the bullet satisfies the live-playbook invariants:
// harmful <= helpful and content length >= 8.
func (b Bullet) Valid() bool {
	return b.Harmful <= b.Helpful && len(strings.TrimSpace(b.Content)) >= 8
}

// Score is helpful - harmful, used for sorting and for prune/top/bottom-N.
func (b Bullet) Score() int {
	return b.Helpful - b.Harmful
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize trims, collapses runs of whitespace, and lowercases content.
// This is the deterministic lexical normalization spec.md calls for in
// place of semantic embeddings or ML clustering.
func Normalize(content string) string {
	collapsed := whitespaceRun.ReplaceAllString(strings.TrimSpace(content), " ")
	return strings.ToLower(collapsed)
}

// Hash computes section "::" normalize(content).
func Hash(section, content string) string {
	return section + "::" + Normalize(content)
}

// ContentHash returns a short hex digest of s, used for provenance
// comment stamping where a compact, stable token is preferable to the
// full normalized string.
func ContentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

var sectionSeparator = regexp.MustCompile(`\s+`)

// SectionID derives section identity from a heading's prose text by
// lowercasing and replacing whitespace with "/".
func SectionID(heading string) string {
	trimmed := strings.TrimSpace(heading)
	return sectionSeparator.ReplaceAllString(strings.ToLower(trimmed), "/")
}
