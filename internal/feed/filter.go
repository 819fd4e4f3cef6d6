package feed

import "strings"

// FilterAll is the sentinel value matching every type or severity
const FilterAll = "all"

// Filter selects the visible subset of the buffer.
// The three predicates are ANDed; zero values match everything.
type Filter struct {
	// Search is matched case-insensitively against title and description
	Search string

	// Type matches the item type exactly, or everything when empty or "all"
	Type string

	// Severity matches the item severity exactly, or everything when empty
	// or "all". Items without a severity only match "all".
	Severity string
}

// Matches reports whether the item passes all three predicates
func (f Filter) Matches(item ActivityItem) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(item.Title), needle) &&
			!strings.Contains(strings.ToLower(item.Description), needle) {
			return false
		}
	}

	if f.Type != "" && f.Type != FilterAll && string(item.Type) != f.Type {
		return false
	}

	if f.Severity != "" && f.Severity != FilterAll && string(item.Severity) != f.Severity {
		return false
	}

	return true
}
