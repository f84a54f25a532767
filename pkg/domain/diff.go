package domain

import "iter"

// FieldDiff describes one field whose value differs between two entities.
type FieldDiff struct {
	Name string `json:"name"`
	Old  any    `json:"old"`
	New  any    `json:"new"`
}

// ChangedFields yields the names in fields whose value differs between
// oldEntity and newEntity. A field missing from one side compares as nil.
func ChangedFields(oldEntity, newEntity *Entity, fields []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range fields {
			if !Equal(oldEntity.Get(name), newEntity.Get(name)) {
				if !yield(name) {
					return
				}
			}
		}
	}
}

// Diff calculates the field differences between oldEntity and newEntity.
// If oldEntity is nil, every non-nil field of newEntity is reported (initial load).
func Diff(oldEntity, newEntity *Entity) []FieldDiff {
	if newEntity == nil {
		return nil
	}

	seen := make(map[string]bool, len(newEntity.Fields))
	var delta []FieldDiff

	// Added or Modified
	for k, newVal := range newEntity.Fields {
		seen[k] = true
		oldVal := oldEntity.Get(k)
		if oldEntity == nil && newVal == nil {
			continue
		}
		if !Equal(oldVal, newVal) {
			delta = append(delta, FieldDiff{Name: k, Old: oldVal, New: newVal})
		}
	}

	// Deletions
	if oldEntity != nil {
		for k, oldVal := range oldEntity.Fields {
			if seen[k] || oldVal == nil {
				continue
			}
			delta = append(delta, FieldDiff{Name: k, Old: oldVal, New: nil})
		}
	}

	return delta
}
