package vector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/transport/mock"
)

// fakeEmbedder returns canned vectors per text. It returns copies so the
// index's in-place normalization cannot leak back into the fixtures.
type fakeEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	v, ok := f.vecs[text]
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("no fixture for %q", text)
	}
	out := make([]float32, len(v))
	copy(out, v)
	return domain.EmbeddingResult{Embedding: out}, nil
}

func testDocs() []Doc {
	return []Doc{
		{ID: "d1", Text: "alpha"},
		{ID: "d2", Text: "beta"},
		{ID: "d3", Text: "gamma"},
	}
}

func testEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vecs: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0.9, 0.1},
		"gamma": {0, 1},
		"query": {1, 0},
	}}
}

func TestSearch_Unbuilt(t *testing.T) {
	ix := New(testEmbedder())
	hits, err := ix.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != nil {
		t.Errorf("got %v, want nil", hits)
	}
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
}

func TestBuildAndSearch_Ranking(t *testing.T) {
	ix := New(testEmbedder())
	if err := ix.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if ix.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ix.Len())
	}

	hits, err := ix.Search(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}

	if hits[0].ID() != "d1" || hits[1].ID() != "d2" || hits[2].ID() != "d3" {
		t.Errorf("order = %s,%s,%s; want d1,d2,d3", hits[0].ID(), hits[1].ID(), hits[2].ID())
	}
	if math.Abs(hits[0].Score()-1.0) > 1e-6 {
		t.Errorf("identical vectors: score %v, want ~1.0", hits[0].Score())
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score() > hits[i-1].Score() {
			t.Errorf("scores not descending at %d: %v > %v", i, hits[i].Score(), hits[i-1].Score())
		}
	}
}

func TestSearch_KClampedToCorpus(t *testing.T) {
	ix := New(testEmbedder())
	if err := ix.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}

	hits, err := ix.Search(context.Background(), "query", 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits, want 3", len(hits))
	}
}

func TestSearch_NonPositiveK(t *testing.T) {
	ix := New(testEmbedder())
	if err := ix.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, k := range []int{0, -1} {
		hits, err := ix.Search(context.Background(), "query", k)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if hits != nil {
			t.Errorf("k=%d: got %v, want nil", k, hits)
		}
	}
}

func TestBuild_EmptyResetsIndex(t *testing.T) {
	ix := New(testEmbedder())
	if err := ix.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}

	if err := ix.Build(context.Background(), nil); err != nil {
		t.Fatalf("empty build: %v", err)
	}
	if ix.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ix.Len())
	}
	hits, err := ix.Search(context.Background(), "query", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Errorf("got %v, want nil", hits)
	}
}

func TestBuild_FailureKeepsPreviousSnapshot(t *testing.T) {
	emb := testEmbedder()
	ix := New(emb)
	if err := ix.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}

	emb.err = errors.New("provider down")
	err := ix.Build(context.Background(), testDocs())
	if err == nil {
		t.Fatal("expected build error")
	}

	// Previous generation still serves searches.
	emb.err = nil
	hits, searchErr := ix.Search(context.Background(), "query", 1)
	if searchErr != nil {
		t.Fatalf("search after failed build: %v", searchErr)
	}
	if len(hits) != 1 || hits[0].ID() != "d1" {
		t.Errorf("got %v, want d1", hits)
	}
	if ix.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ix.Len())
	}
}

func TestSearch_ZeroVectorQueryYieldsNoHits(t *testing.T) {
	ix := New(mock.NewEmbedder(64))
	docs := []Doc{
		{ID: "d1", Text: "cats are great pets"},
		{ID: "d2", Text: "dogs are loyal companions"},
		{ID: "d3", Text: "cats and dogs can be friends"},
	}
	if err := ix.Build(context.Background(), docs); err != nil {
		t.Fatalf("build: %v", err)
	}

	// The feature-hash embedder maps queries without tokens to the zero
	// vector; similarity against it is undefined, so no hits may come back
	// (previously every hit carried a NaN score).
	for _, q := range []string{"", "?!,."} {
		hits, err := ix.Search(context.Background(), q, 3)
		if err != nil {
			t.Fatalf("query %q: %v", q, err)
		}
		if hits != nil {
			t.Errorf("query %q: got %v, want nil", q, hits)
		}
	}

	hits, err := ix.Search(context.Background(), "cats", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, h := range hits {
		if math.IsNaN(h.Score()) {
			t.Errorf("NaN score for %s", h.ID())
		}
	}
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	emb := testEmbedder()
	emb.vecs["query"] = []float32{1, 0, 0}
	ix := New(emb)
	if err := ix.Build(context.Background(), testDocs()); err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err := ix.Search(context.Background(), "query", 1)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
	}
}
