package domain

import (
	"regexp"
	"sort"
	"strings"
)

var (
	galaxyWord    = regexp.MustCompile(`(?i)galaxy\s+`)
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// NormalizeModel produces the identity key used for duplicate detection:
// lower-cased, "galaxy " removed, parenthetical suffixes removed, whitespace removed.
func NormalizeModel(model string) string {
	s := strings.ToLower(model)
	s = galaxyWord.ReplaceAllString(s, "")
	s = parenthetical.ReplaceAllString(s, "")
	return whitespace.ReplaceAllString(s, "")
}

// IsEstimatedModel reports whether a model name carries the "(Estimated)" tag.
func IsEstimatedModel(model string) bool {
	return strings.Contains(model, "Estimated")
}

// StripEstimated removes the "(Estimated)" marketing suffix.
func StripEstimated(model string) string {
	return strings.TrimSpace(strings.ReplaceAll(model, EstimatedSuffix, ""))
}

// SortEntries orders entries by release year (newest first), then model name.
// The order is total so that persisted files are diff-stable.
func SortEntries(entries []CatalogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ReleaseYear != entries[j].ReleaseYear {
			return entries[i].ReleaseYear > entries[j].ReleaseYear
		}
		return entries[i].Model < entries[j].Model
	})
}
