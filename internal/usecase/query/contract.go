package query

import (
	"context"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/domain/search/hit"
	"github.com/privara/docsearch/internal/domain/search/request"
	"github.com/privara/docsearch/internal/repository/sqlite"
)

// Engine is the retrieval engine contract.
type Engine interface {
	Search(ctx context.Context, req *request.Request) ([]hit.Hit, error)
}

// DocumentStore loads documents and tracks their usage.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	IncrementViewCount(ctx context.Context, id string) error
}

// ConversationStore persists conversation turns per session.
type ConversationStore interface {
	AddConversationMessage(ctx context.Context, msg sqlite.ConversationMessage) error
	GetConversationHistory(ctx context.Context, sessionID string, limit int) ([]sqlite.ConversationMessage, error)
}

// QueryLogStore records completed queries for analytics.
type QueryLogStore interface {
	AddQueryLog(ctx context.Context, log sqlite.QueryLog) error
}

// Authorizer answers relationship checks. Implementations must deny on
// failure.
type Authorizer interface {
	Check(ctx context.Context, subject, relation, object string) bool
}
