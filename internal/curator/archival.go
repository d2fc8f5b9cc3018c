package curator

import "github.com/sjarmak/acebeads/internal/knowledge"

// defaultHarmfulThreshold is the harmful count at or above which a
// bullet is excised from the live playbook (spec.md Section 4.5,
// "Harmful-bullet archival"), configurable by the caller.
const defaultHarmfulThreshold = 2

// SplitHarmful partitions bullets into the set that stays in the live
// playbook and the set to archive, using threshold (or
// defaultHarmfulThreshold when <= 0).
func SplitHarmful(bullets []knowledge.Bullet, threshold int) (kept, archived []knowledge.Bullet) {
	if threshold <= 0 {
		threshold = defaultHarmfulThreshold
	}
	for _, b := range bullets {
		if b.Harmful >= threshold {
			archived = append(archived, b)
			continue
		}
		kept = append(kept, b)
	}
	return kept, archived
}

// ArchiveHarmful excises bullets at or above the harmful threshold from
// the live set and appends them to the store's archive file, stamped
// with date. Archival is idempotent: AppendArchive skips bullets whose
// id is already archived.
func ArchiveHarmful(store *knowledge.Store, bullets []knowledge.Bullet, threshold int, date string) ([]knowledge.Bullet, error) {
	kept, archived := SplitHarmful(bullets, threshold)
	if len(archived) == 0 {
		return bullets, nil
	}
	if err := store.AppendArchive(archived, date); err != nil {
		return nil, err
	}
	return kept, nil
}
