// Package lexical implements a simplified BM25 relevance scorer.
//
// Two deliberate simplifications are kept for parity with the reference
// ranking behavior: the IDF term depends only on corpus size (not on how
// many documents contain the term), and the average document length is a
// fixed constant instead of a corpus statistic.
package lexical

import "math"

// BM25 tuning parameters.
const (
	k1 = 1.5
	b  = 0.75
	// avgDocLen is a fixed constant, not computed from the corpus.
	avgDocLen = 100.0
)

// Score computes the simplified BM25 score of a tokenized query against a
// tokenized document. Returns 0 when the query is empty or no term matches.
// The result is never negative.
func Score(queryTokens, docTokens []string, corpusSize int) float64 {
	if len(queryTokens) == 0 || len(docTokens) == 0 {
		return 0
	}

	tf := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		tf[t]++
	}

	// Corpus-size-only IDF approximation, shared by every term.
	idf := math.Log(float64(corpusSize+1) / 2)
	docLen := float64(len(docTokens))

	seen := make(map[string]struct{}, len(queryTokens))
	var score float64
	for _, term := range queryTokens {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		freq, ok := tf[term]
		if !ok {
			continue
		}
		f := float64(freq)
		score += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*(docLen/avgDocLen)))
	}

	if score < 0 {
		return 0
	}
	return score
}
