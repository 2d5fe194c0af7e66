package search

import (
	"context"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/domain/search/hit"
	"github.com/privara/docsearch/internal/index/vector"
)

// DocumentSource supplies the document set for wholesale index builds.
type DocumentSource interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// VectorIndex is the dense similarity index contract.
type VectorIndex interface {
	Build(ctx context.Context, docs []vector.Doc) error
	Search(ctx context.Context, query string, k int) ([]hit.Hit, error)
	Len() int
}
