// Package hit defines the scored search hit value type shared by the
// lexical scorer, the vector index, and the fusion engine.
package hit

// Hit is a single scored candidate.
type Hit struct {
	id    string
	score float64
}

// New creates a scored hit.
func New(id string, score float64) Hit {
	return Hit{id: id, score: score}
}

// ID returns the document identifier.
func (h *Hit) ID() string { return h.id }

// Score returns the relevance score.
func (h *Hit) Score() float64 { return h.score }

// WithScore returns a copy of the hit carrying a different score.
func (h *Hit) WithScore(score float64) Hit {
	return Hit{id: h.id, score: score}
}
