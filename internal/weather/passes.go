package weather

import (
	"github.com/i474232898/mountain-conditions/internal/common"
)

// MatchPasses keeps the passes whose name contains any of the location's keywords.
func MatchPasses(passes []RawPassSummary, keywords []string) []RawPassSummary {
	if len(keywords) == 0 {
		return nil
	}
	var matched []RawPassSummary
	for _, p := range passes {
		if common.HasAny(p.Name, keywords...) {
			matched = append(matched, p)
		}
	}
	return matched
}
