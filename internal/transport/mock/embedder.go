package mock

import (
	"context"
	"hash/fnv"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/index/token"
)

const defaultDimensions = 256

// Embedder maps text to a fixed-size feature-hash vector. It stands in for
// a real embedding provider in offline demos and tests: identical texts get
// identical vectors and overlapping vocabularies get correlated ones.
type Embedder struct {
	dimensions int
}

// NewEmbedder creates an offline embedder. dimensions <= 0 selects the
// default.
func NewEmbedder(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec := make([]float32, e.dimensions)
	for _, tok := range token.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dimensions)]++
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, e, texts)
}
