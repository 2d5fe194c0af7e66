// Package chi exposes the HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/auth"
	"github.com/privara/docsearch/internal/authz"
	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/repository/sqlite"
	healthuc "github.com/privara/docsearch/internal/usecase/health"
	profileuc "github.com/privara/docsearch/internal/usecase/profile"
	queryuc "github.com/privara/docsearch/internal/usecase/query"
	searchuc "github.com/privara/docsearch/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the API handlers onto a chi router.
type Server struct {
	issuer        *auth.Issuer
	query         *queryuc.Service
	engine        *searchuc.Engine
	profile       *profileuc.Service
	health        *healthuc.Service
	authz         *authz.Client
	store         *sqlite.Store
	generator     domain.AnswerGenerator
	defaultTopK   int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. queryTopK is the top_k applied to
// query requests that do not set one.
func NewServer(
	issuer *auth.Issuer,
	query *queryuc.Service,
	engine *searchuc.Engine,
	profile *profileuc.Service,
	health *healthuc.Service,
	authzClient *authz.Client,
	store *sqlite.Store,
	generator domain.AnswerGenerator,
	queryTopK int,
	logger *zap.Logger,
) *Server {
	s := &Server{
		issuer:      issuer,
		query:       query,
		engine:      engine,
		profile:     profile,
		health:      health,
		authz:       authzClient,
		store:       store,
		generator:   generator,
		defaultTopK: queryTopK,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, "document_not_found"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, "forbidden"),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, "llm_provider_error"),
	}
	return s
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/login", s.handleLogin)
	r.Post("/fga/check", s.handleFGACheck)

	r.Post("/query", s.handleQuery)
	r.Post("/documents", s.handleAddDocument)
	r.Post("/admin/reindex", s.handleReindex)

	r.Get("/admin/fga", s.handleListRelationships)
	r.Post("/admin/fga", s.handleAddRelationship)
	r.Delete("/admin/fga", s.handleRemoveRelationship)

	r.Get("/me/settings", s.handleGetSettings)
	r.Put("/me/settings", s.handleUpdateSettings)
	r.Post("/vault/tokens", s.handleStoreToken)
	r.Get("/vault/tokens/{provider}", s.handleReadToken)
	r.Get("/assistant/contextual-weather", s.handleContextualWeather)

	r.Post("/feedback", s.handleFeedback)
	r.Get("/conversation/{sessionID}", s.handleConversation)
	r.Get("/analytics", s.handleAnalytics)
	r.Get("/query-logs", s.handleQueryLogs)
	r.Post("/llm/generate", s.handleGenerate)
}

// userFrom resolves the authenticated user placed in the context by the
// auth middleware.
func (s *Server) userFrom(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return user, ok
}

// requireManager enforces manager-only endpoints. Writes a 403 and returns
// false for non-managers.
func (s *Server) requireManager(w http.ResponseWriter, user domain.User, action string) bool {
	if !user.IsManager() {
		writeError(w, http.StatusForbidden, "forbidden", "Only managers may "+action)
		return false
	}
	return true
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrUnauthorized,
		domain.ErrForbidden,
		domain.ErrInvalidInput,
		domain.ErrEmbeddingProviderError,
		domain.ErrLLMProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

// documentJSON is the wire representation of a document.
type documentJSON struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Sensitive    bool       `json:"sensitive"`
	Author       string     `json:"author,omitempty"`
	Department   string     `json:"department,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Version      int        `json:"version,omitempty"`
	ViewCount    int        `json:"view_count"`
	HelpfulCount int        `json:"helpful_count"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func documentToJSON(d domain.Document) documentJSON {
	out := documentJSON{
		ID:           d.ID,
		Title:        d.Title,
		Content:      d.Content,
		Sensitive:    d.Sensitive,
		Author:       d.Author,
		Department:   d.Department,
		Tags:         d.Tags,
		Version:      d.Version,
		ViewCount:    d.ViewCount,
		HelpfulCount: d.HelpfulCount,
	}
	if !d.CreatedAt.IsZero() {
		t := d.CreatedAt
		out.CreatedAt = &t
	}
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func documentFromJSON(d documentJSON) domain.Document {
	return domain.Document{
		ID:         d.ID,
		Title:      d.Title,
		Content:    d.Content,
		Sensitive:  d.Sensitive,
		Author:     d.Author,
		Department: d.Department,
		Tags:       d.Tags,
	}
}
