package domain

import "context"

// ChatMessage is one turn of a conversation passed to the answer generator.
type ChatMessage struct {
	Role    string
	Content string
}

// AnswerResult is a generated answer with the document IDs it cites.
type AnswerResult struct {
	Answer     string
	Confidence float64
	Citations  []string
}

// AnswerGenerator produces an answer to a query grounded on the retrieved
// documents. History carries prior conversation turns, oldest first.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, query string, docs []Document, history []ChatMessage) (AnswerResult, error)
}
