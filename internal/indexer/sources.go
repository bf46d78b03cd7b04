package indexer

import (
	"path/filepath"

	"github.com/Aman-CERP/amanbeta/internal/mapping"
)

// matches reports whether a --database filter entry selects source id.
func matches(filter, id, dir string) bool {
	if filter == id || filter == filepath.Base(id) {
		return true
	}
	a, errA := filepath.Abs(filter)
	b, errB := filepath.Abs(mapping.SourcePath(id, dir))
	return errA == nil && errB == nil && a == b
}

// selectSources splits ids into those the filters select and those skipped.
// No filters selects everything.
func selectSources(ids, filters []string, dir string) (selected, skipped []string) {
	if len(filters) == 0 {
		return ids, nil
	}
	for _, id := range ids {
		hit := false
		for _, f := range filters {
			if matches(f, id, dir) {
				hit = true
				break
			}
		}
		if hit {
			selected = append(selected, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	return selected, skipped
}

// unmatchedFilters returns the filters that select no source.
func unmatchedFilters(ids, filters []string, dir string) []string {
	var out []string
	for _, f := range filters {
		hit := false
		for _, id := range ids {
			if matches(f, id, dir) {
				hit = true
				break
			}
		}
		if !hit {
			out = append(out, f)
		}
	}
	return out
}
