// Package request defines the validated search request value type.
package request

import (
	"fmt"

	"github.com/privara/docsearch/internal/domain"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 10
	MaxTopK        = 500
	// DefaultAlpha is the default vector-vs-lexical blend weight.
	DefaultAlpha = 0.5
)

// Request is a validated search query.
//
// Alpha weighs the vector leg against the lexical leg in hybrid mode.
// Values outside [0,1] are accepted and simply skew the blend; the engine
// does not clamp them.
type Request struct {
	query  string
	topK   int
	hybrid bool
	alpha  float64
}

// New validates and normalizes search parameters.
// Defaults: hybrid=true, topK=10, alpha=0.5 (alphaSet=false keeps the default).
func New(query string, topK int, hybrid bool, alpha float64, alphaSet bool) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidInput)
	}
	if topK > MaxTopK {
		return Request{}, fmt.Errorf("top_k must be at most %d: %w", MaxTopK, domain.ErrInvalidInput)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if !alphaSet {
		alpha = DefaultAlpha
	}

	return Request{
		query:  query,
		topK:   topK,
		hybrid: hybrid,
		alpha:  alpha,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// TopK returns the number of results to return.
func (r *Request) TopK() int { return r.topK }

// Hybrid reports whether lexical fusion is enabled.
func (r *Request) Hybrid() bool { return r.hybrid }

// Alpha returns the vector-vs-lexical blend weight.
func (r *Request) Alpha() float64 { return r.alpha }
