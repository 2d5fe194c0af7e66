// Package search implements the hybrid retrieval engine: a dense vector leg
// and a lexical BM25 leg, independently min-max normalized and linearly
// blended into one ranked candidate list.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/privara/docsearch/internal/domain/search/hit"
	"github.com/privara/docsearch/internal/domain/search/request"
	"github.com/privara/docsearch/internal/index/lexical"
	"github.com/privara/docsearch/internal/index/token"
	"github.com/privara/docsearch/internal/index/vector"
	"github.com/privara/docsearch/internal/metrics"
)

// corpus is the immutable lexical side of one index generation: ids and
// pre-tokenized texts in parallel array order.
type corpus struct {
	ids    []string
	tokens [][]string
}

// Engine orchestrates the vector index and the lexical scorer. Build
// constructs both sides off to the side and publishes them via snapshot
// swap; in-flight searches keep reading the previous generation.
type Engine struct {
	vectors VectorIndex
	docs    DocumentSource
	logger  *zap.Logger
	lexicon atomic.Pointer[corpus]
}

// NewEngine creates an unbuilt engine. Searches return no results until the
// first successful Build.
func NewEngine(vectors VectorIndex, docs DocumentSource, logger *zap.Logger) *Engine {
	return &Engine{vectors: vectors, docs: docs, logger: logger}
}

// Build rebuilds the whole index from the document source. Rebuilding
// replaces prior state wholesale; a failed build publishes nothing.
func (e *Engine) Build(ctx context.Context) error {
	docs, err := e.docs.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	vdocs := make([]vector.Doc, len(docs))
	next := &corpus{
		ids:    make([]string, len(docs)),
		tokens: make([][]string, len(docs)),
	}
	for i := range docs {
		text := docs[i].IndexText()
		vdocs[i] = vector.Doc{ID: docs[i].ID, Text: text}
		next.ids[i] = docs[i].ID
		next.tokens[i] = token.Tokenize(text)
	}

	if err := e.vectors.Build(ctx, vdocs); err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}
	if len(docs) == 0 {
		e.lexicon.Store(nil)
	} else {
		e.lexicon.Store(next)
	}

	e.logger.Info("index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

// Size returns the number of indexed documents, 0 when unbuilt.
func (e *Engine) Size() int { return e.vectors.Len() }

// Search returns up to topK hits ranked by descending score.
//
// Hybrid mode requests 2*topK candidates from each leg, normalizes both
// lists independently and blends them as alpha*vector + (1-alpha)*lexical.
// The union is additive: a document missing from one leg contributes 0 for
// that side. An empty query yields no lexical candidates, so ranking falls
// back to the alpha-weighted vector leg alone.
func (e *Engine) Search(ctx context.Context, req *request.Request) ([]hit.Hit, error) {
	if req.TopK() <= 0 {
		return nil, nil
	}

	if !req.Hybrid() {
		metrics.SearchRequestsTotal.WithLabelValues("vector").Inc()
		hits, err := e.vectors.Search(ctx, req.Query(), req.TopK())
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		return hits, nil
	}

	metrics.SearchRequestsTotal.WithLabelValues("hybrid").Inc()

	candidates := 2 * req.TopK()
	var vecHits, lexHits []hit.Hit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecHits, err = e.vectors.Search(gctx, req.Query(), candidates)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lexHits = e.searchLexical(req.Query(), candidates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuse(vecHits, lexHits, req.Alpha())
	if len(fused) > req.TopK() {
		fused = fused[:req.TopK()]
	}
	return fused, nil
}

// searchLexical scores the query against every indexed document and returns
// up to k positive-scoring hits, best first. This is an O(corpus) linear
// scan per query; fine for small corpora.
func (e *Engine) searchLexical(query string, k int) []hit.Hit {
	corp := e.lexicon.Load()
	if corp == nil {
		return nil
	}

	queryTokens := token.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	corpusSize := len(corp.ids)
	hits := make([]hit.Hit, 0, corpusSize)
	for i, docTokens := range corp.tokens {
		score := lexical.Score(queryTokens, docTokens, corpusSize)
		if score > 0 {
			hits = append(hits, hit.New(corp.ids[i], score))
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score() > hits[j].Score()
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// fuse normalizes each candidate list independently, then blends scores as
// alpha*vector + (1-alpha)*lexical over the union of both lists. Ordering is
// stable: ties keep first-computed order (vector list first).
func fuse(vecHits, lexHits []hit.Hit, alpha float64) []hit.Hit {
	vecNorm := normalizeScores(vecHits)
	lexNorm := normalizeScores(lexHits)

	combined := make(map[string]float64, len(vecNorm)+len(lexNorm))
	order := make([]string, 0, len(vecNorm)+len(lexNorm))

	for i := range vecNorm {
		id := vecNorm[i].ID()
		if _, ok := combined[id]; !ok {
			order = append(order, id)
		}
		combined[id] += alpha * vecNorm[i].Score()
	}
	for i := range lexNorm {
		id := lexNorm[i].ID()
		if _, ok := combined[id]; !ok {
			order = append(order, id)
		}
		combined[id] += (1 - alpha) * lexNorm[i].Score()
	}

	fused := make([]hit.Hit, len(order))
	for i, id := range order {
		fused[i] = hit.New(id, combined[id])
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score() > fused[j].Score()
	})
	return fused
}
