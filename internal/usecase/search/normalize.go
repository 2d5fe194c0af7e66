package search

import "github.com/privara/docsearch/internal/domain/search/hit"

// normalizeScores rescales hit scores into [0,1] with min-max scaling so
// heterogeneous scorers can be linearly combined. Input order is preserved.
// An all-equal list (including a single hit) normalizes to 1.0 everywhere.
func normalizeScores(hits []hit.Hit) []hit.Hit {
	if len(hits) == 0 {
		return nil
	}

	minScore, maxScore := hits[0].Score(), hits[0].Score()
	for i := 1; i < len(hits); i++ {
		s := hits[i].Score()
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]hit.Hit, len(hits))
	if maxScore == minScore {
		for i := range hits {
			out[i] = hits[i].WithScore(1.0)
		}
		return out
	}

	span := maxScore - minScore
	for i := range hits {
		out[i] = hits[i].WithScore((hits[i].Score() - minScore) / span)
	}
	return out
}
