// Package query orchestrates an authenticated retrieval request: search,
// per-document authorization, optional answer generation, and query logging.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/domain/search/request"
	"github.com/privara/docsearch/internal/repository/sqlite"
)

const historyLimit = 10

// Params are the caller-supplied query parameters. SessionID may be empty;
// a new session is started in that case.
type Params struct {
	Query     string
	SessionID string
	TopK      int
	Hybrid    bool
	Alpha     float64
	AlphaSet  bool
}

// Result is the outcome of a query: the documents the user may view plus
// the optional generated answer.
type Result struct {
	Results         []domain.Document
	QueryID         string
	SessionID       string
	GeneratedAnswer string
	Confidence      *float64
}

// Service runs retrieval requests end to end.
type Service struct {
	engine        Engine
	docs          DocumentStore
	conversations ConversationStore
	queryLogs     QueryLogStore
	authz         Authorizer
	generator     domain.AnswerGenerator
	logger        *zap.Logger
}

// NewService creates the query service. generator may be nil to disable
// answer generation.
func NewService(engine Engine, docs DocumentStore, conversations ConversationStore,
	queryLogs QueryLogStore, authz Authorizer, generator domain.AnswerGenerator, logger *zap.Logger) *Service {
	return &Service{
		engine:        engine,
		docs:          docs,
		conversations: conversations,
		queryLogs:     queryLogs,
		authz:         authz,
		generator:     generator,
		logger:        logger,
	}
}

// Query searches on behalf of user, keeps only documents the user holds a
// can_view relationship on, and logs the request. Failures of the answer
// generator and the query log are non-fatal.
func (s *Service) Query(ctx context.Context, user domain.User, p Params) (Result, error) {
	start := time.Now()

	req, err := request.New(p.Query, p.TopK, p.Hybrid, p.Alpha, p.AlphaSet)
	if err != nil {
		return Result{}, err
	}

	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := s.conversations.AddConversationMessage(ctx, sqlite.ConversationMessage{
		SessionID: sessionID,
		UserSub:   user.Sub,
		Role:      "user",
		Content:   p.Query,
	}); err != nil {
		return Result{}, fmt.Errorf("record user message: %w", err)
	}

	hits, err := s.engine.Search(ctx, &req)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}

	allowed := make([]domain.Document, 0, len(hits))
	retrievedIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		if !s.authz.Check(ctx, user.Sub, "can_view", "document:"+h.ID()) {
			continue
		}

		doc, err := s.docs.GetDocument(ctx, h.ID())
		if err != nil {
			// The index can briefly reference documents removed from the
			// store since the last rebuild.
			if errors.Is(err, domain.ErrDocumentNotFound) {
				s.logger.Warn("indexed document missing from store", zap.String("doc_id", h.ID()))
				continue
			}
			return Result{}, fmt.Errorf("load document %s: %w", h.ID(), err)
		}

		if err := s.docs.IncrementViewCount(ctx, h.ID()); err != nil {
			s.logger.Warn("increment view count failed", zap.String("doc_id", h.ID()), zap.Error(err))
		}

		allowed = append(allowed, doc)
		retrievedIDs = append(retrievedIDs, h.ID())
	}

	res := Result{
		Results:   allowed,
		QueryID:   uuid.NewString(),
		SessionID: sessionID,
	}

	if s.generator != nil && len(allowed) > 0 {
		s.generateAnswer(ctx, user, sessionID, p.Query, allowed, &res)
	}

	latencyMs := float64(time.Since(start).Microseconds()) / 1000
	if err := s.queryLogs.AddQueryLog(ctx, sqlite.QueryLog{
		ID:              res.QueryID,
		UserSub:         user.Sub,
		Query:           p.Query,
		SessionID:       sessionID,
		RetrievedDocIDs: retrievedIDs,
		LatencyMs:       latencyMs,
		Confidence:      res.Confidence,
	}); err != nil {
		s.logger.Warn("query log write failed", zap.Error(err))
	}

	return res, nil
}

// generateAnswer runs the answer generator over the allowed documents and
// records the assistant turn. Any failure leaves the result without an
// answer.
func (s *Service) generateAnswer(ctx context.Context, user domain.User, sessionID, query string,
	docs []domain.Document, res *Result) {
	history, err := s.conversations.GetConversationHistory(ctx, sessionID, historyLimit)
	if err != nil {
		s.logger.Warn("conversation history load failed", zap.Error(err))
		history = nil
	}
	// Drop the current user message, it is already in the prompt.
	if n := len(history); n > 0 {
		history = history[:n-1]
	}

	turns := make([]domain.ChatMessage, 0, len(history))
	for _, msg := range history {
		turns = append(turns, domain.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	answer, err := s.generator.GenerateAnswer(ctx, query, docs, turns)
	if err != nil {
		s.logger.Warn("answer generation failed", zap.Error(err))
		return
	}

	res.GeneratedAnswer = answer.Answer
	confidence := answer.Confidence
	res.Confidence = &confidence

	if err := s.conversations.AddConversationMessage(ctx, sqlite.ConversationMessage{
		SessionID: sessionID,
		UserSub:   user.Sub,
		Role:      "assistant",
		Content:   answer.Answer,
		Citations: answer.Citations,
	}); err != nil {
		s.logger.Warn("record assistant message failed", zap.Error(err))
	}
}
