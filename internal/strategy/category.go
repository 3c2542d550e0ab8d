package strategy

import (
	"strings"

	"WhaleConsensus/internal/model"
)

// categoryKeywords is checked in order; the first category with a matching
// tag wins.
var categoryKeywords = []struct {
	Category model.Category
	Keywords []string
}{
	{model.CategorySports, []string{"sports", "nfl", "nba", "mlb", "soccer", "football"}},
	{model.CategoryPolitics, []string{"politics", "election", "trump", "biden", "congress"}},
	{model.CategoryFinance, []string{"finance", "crypto", "bitcoin", "fed", "interest"}},
	{model.CategoryEntertainment, []string{"entertainment", "movies", "oscars", "celebrity"}},
}

// Classify maps market tags onto a category. No tags or no match gives other.
func Classify(tags []string) model.Category {
	if len(tags) == 0 {
		return model.CategoryOther
	}
	lowered := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		lowered[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	for _, entry := range categoryKeywords {
		for _, kw := range entry.Keywords {
			if _, ok := lowered[kw]; ok {
				return entry.Category
			}
		}
	}
	return model.CategoryOther
}
