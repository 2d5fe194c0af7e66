// Package vector wraps an in-memory inner-product similarity index over
// document embeddings. Vectors are L2-normalized on both sides, so inner
// product equals cosine similarity.
package vector

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/coder/hnsw"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/domain/search/hit"
)

// Doc is an (id, text) pair supplied at build time.
type Doc struct {
	ID   string
	Text string
}

// snapshot is one fully built, immutable index generation. Build constructs
// a new snapshot off to the side and publishes it atomically, so in-flight
// searches keep reading the previous generation to completion.
type snapshot struct {
	graph *hnsw.Graph[int]
	ids   []string
	dim   int
}

// Index is an embedding similarity index. The zero value via New is in the
// unbuilt state: searches return no hits until the first successful Build.
type Index struct {
	embedder domain.Embedder
	current  atomic.Pointer[snapshot]
}

// New creates an unbuilt index backed by the given embedder.
func New(embedder domain.Embedder) *Index {
	return &Index{embedder: embedder}
}

// Build embeds every document, L2-normalizes the vectors, and swaps in a new
// snapshot. An empty doc set resets the index to the unbuilt state. On error
// the previous snapshot stays published.
func (ix *Index) Build(ctx context.Context, docs []Doc) error {
	if len(docs) == 0 {
		ix.current.Store(nil)
		return nil
	}

	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
		ids[i] = d.ID
	}

	embedded, err := ix.embedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	dim := len(embedded[0])
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance

	for i, vec := range embedded {
		if len(vec) != dim {
			return fmt.Errorf("embedding dimension changed mid-build: got %d, want %d: %w",
				len(vec), dim, domain.ErrEmbeddingProviderError)
		}
		normalize(vec)
		graph.Add(hnsw.MakeNode(i, vec))
	}

	ix.current.Store(&snapshot{graph: graph, ids: ids, dim: dim})
	return nil
}

// Search embeds the query and returns up to k nearest documents by inner
// product, highest first. An unbuilt index, k <= 0, or a query that embeds
// to the zero vector yields no hits.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]hit.Hit, error) {
	snap := ix.current.Load()
	if snap == nil || k <= 0 {
		return nil, nil
	}
	if k > len(snap.ids) {
		k = len(snap.ids)
	}

	res, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qvec := res.Embedding
	if len(qvec) != snap.dim {
		return nil, fmt.Errorf("query embedding dimension %d, index has %d: %w",
			len(qvec), snap.dim, domain.ErrEmbeddingProviderError)
	}
	// A zero query vector has no direction; cosine distance against it is
	// undefined and would surface as NaN scores.
	if !normalize(qvec) {
		return nil, nil
	}

	nodes := snap.graph.Search(qvec, k)
	hits := make([]hit.Hit, 0, len(nodes))
	for _, node := range nodes {
		// Unit vectors: inner product = 1 - cosine distance.
		score := 1 - float64(hnsw.CosineDistance(qvec, node.Value))
		hits = append(hits, hit.New(snap.ids[node.Key], score))
	}
	return hits, nil
}

// Len returns the number of indexed documents, 0 when unbuilt.
func (ix *Index) Len() int {
	snap := ix.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.ids)
}

// embedTexts prefers the provider's batch endpoint and falls back to
// per-text calls.
func (ix *Index) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if be, ok := ix.embedder.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(res.Embeddings) != len(texts) {
			return nil, fmt.Errorf("provider returned %d embeddings for %d texts: %w",
				len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
		}
		return res.Embeddings, nil
	}

	res, err := domain.BatchFallback(ctx, ix.embedder, texts)
	if err != nil {
		return nil, err
	}
	return res.Embeddings, nil
}

// normalize scales v to unit length in place. Reports false for the zero
// vector, which is left as-is.
func normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return true
}
