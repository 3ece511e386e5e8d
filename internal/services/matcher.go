package services

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// CategoryMatcher maps free-text fragments onto known tracking option names
// using edit-distance scoring. Results are advisory: no similarity floor is
// enforced, so even a poor match is returned and callers must validate the
// resolved ids before use.
type CategoryMatcher struct{}

// NewCategoryMatcher creates a new matcher instance
func NewCategoryMatcher() *CategoryMatcher {
	return &CategoryMatcher{}
}

// BestMatch returns the candidate option name with the minimum case-insensitive
// Levenshtein distance to fragment. Ties resolve to the earliest candidate in
// slice order, which preserves the order the ledger API listed the options in.
// Returns false when there are no candidates.
func (m *CategoryMatcher) BestMatch(fragment string, candidates []models.TrackingOption) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	needle := []rune(strings.ToLower(fragment))

	bestName := ""
	bestScore := -1

	for _, opt := range candidates {
		haystack := []rune(strings.ToLower(opt.Name))
		distance := levenshtein.DistanceForStrings(needle, haystack, levenshtein.DefaultOptions)
		if bestScore < 0 || distance < bestScore {
			bestScore = distance
			bestName = opt.Name
		}
	}

	return bestName, true
}
