// Package mock provides a deterministic answer generator used when no LLM
// provider is configured. It keeps the demo fully offline.
package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/privara/docsearch/internal/domain"
)

const snippetLen = 100

// Generator summarizes the top retrieved documents without calling any API.
type Generator struct{}

// NewGenerator creates the offline answer generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateAnswer implements domain.AnswerGenerator.
func (g *Generator) GenerateAnswer(_ context.Context, query string, docs []domain.Document, _ []domain.ChatMessage) (domain.AnswerResult, error) {
	if len(docs) == 0 {
		return domain.AnswerResult{
			Answer: fmt.Sprintf("I don't have any information to answer: %s", query),
		}, nil
	}

	if len(docs) > 3 {
		docs = docs[:3]
	}

	summaries := make([]string, 0, len(docs))
	citations := make([]string, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, fmt.Sprintf("According to [%s], %s: %s...", doc.ID, doc.Title, snippet(doc.Content)))
		citations = append(citations, doc.ID)
	}

	return domain.AnswerResult{
		Answer:     "Based on the available documents:\n\n" + strings.Join(summaries, "\n\n"),
		Confidence: 0.7,
		Citations:  citations,
	}, nil
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLen {
		return content
	}
	return string(runes[:snippetLen])
}
