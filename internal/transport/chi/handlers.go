package chi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/privara/docsearch/internal/auth"
	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/repository/sqlite"
	queryuc "github.com/privara/docsearch/internal/usecase/query"
)

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            report.Status,
		"checks":            report.Checks,
		"indexed_documents": report.IndexedDocuments,
	})
}

// handleLogin handles POST /login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	user, ok := auth.Authenticate(req.Username)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unknown user")
		return
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         user,
	})
}

// handleQuery handles POST /query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		Query     string   `json:"query"`
		SessionID string   `json:"session_id"`
		TopK      int      `json:"top_k"`
		Hybrid    *bool    `json:"hybrid"`
		Alpha     *float64 `json:"alpha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = s.defaultTopK
	}

	params := queryuc.Params{
		Query:     req.Query,
		SessionID: req.SessionID,
		TopK:      topK,
		Hybrid:    true,
	}
	if req.Hybrid != nil {
		params.Hybrid = *req.Hybrid
	}
	if req.Alpha != nil {
		params.Alpha = *req.Alpha
		params.AlphaSet = true
	}

	res, err := s.query.Query(r.Context(), user, params)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := make([]documentJSON, len(res.Results))
	for i, d := range res.Results {
		results[i] = documentToJSON(d)
	}

	resp := map[string]any{
		"results":    results,
		"query_id":   res.QueryID,
		"session_id": res.SessionID,
	}
	if res.GeneratedAnswer != "" {
		resp["generated_answer"] = res.GeneratedAnswer
	}
	if res.Confidence != nil {
		resp["confidence"] = *res.Confidence
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddDocument handles POST /documents. Managers only.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}
	if !s.requireManager(w, user, "add documents") {
		return
	}

	var req documentJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.ID == "" || req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "id, title and content are required")
		return
	}

	doc := documentFromJSON(req)
	if err := s.store.UpsertDocument(r.Context(), &doc); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": doc.ID})
}

// handleReindex handles POST /admin/reindex. Managers only. Rebuilds the
// retrieval index from the document store.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}
	if !s.requireManager(w, user, "trigger a reindex") {
		return
	}

	if err := s.engine.Build(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"indexed": s.engine.Size(),
	})
}

// relationshipRequest is the body of the FGA tuple endpoints.
type relationshipRequest struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

func decodeRelationship(w http.ResponseWriter, r *http.Request) (relationshipRequest, bool) {
	var req relationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return req, false
	}
	if req.Subject == "" || req.Relation == "" || req.Object == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "subject, relation and object are required")
		return req, false
	}
	return req, true
}

// handleFGACheck handles POST /fga/check, the unauthenticated mock check
// endpoint a remote FGA URL can be pointed at during local testing. It
// consults only the local relationship store.
func (s *Server) handleFGACheck(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRelationship(w, r)
	if !ok {
		return
	}
	allowed := s.authz.CheckLocal(r.Context(), req.Subject, req.Relation, req.Object)
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// handleListRelationships handles GET /admin/fga. Managers only.
func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}
	if !s.requireManager(w, user, "view FGA relationships") {
		return
	}

	rels, err := s.store.ListRelationships(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": rels})
}

// handleAddRelationship handles POST /admin/fga. Managers only.
func (s *Server) handleAddRelationship(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}
	if !s.requireManager(w, user, "modify FGA relationships") {
		return
	}

	req, ok := decodeRelationship(w, r)
	if !ok {
		return
	}

	if err := s.authz.Add(r.Context(), req.Subject, req.Relation, req.Object); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"subject":  req.Subject,
		"relation": req.Relation,
		"object":   req.Object,
	})
}

// handleRemoveRelationship handles DELETE /admin/fga. Managers only.
func (s *Server) handleRemoveRelationship(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}
	if !s.requireManager(w, user, "modify FGA relationships") {
		return
	}

	req, ok := decodeRelationship(w, r)
	if !ok {
		return
	}

	removed, err := s.authz.Remove(r.Context(), req.Subject, req.Relation, req.Object)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", "Relationship not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetSettings handles GET /me/settings.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	settings, err := s.profile.GetSettings(r.Context(), user.Sub)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings handles PUT /me/settings.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	var settings domain.UserSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if err := s.profile.UpdateSettings(r.Context(), user.Sub, settings); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleStoreToken handles POST /vault/tokens.
func (s *Server) handleStoreToken(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Token    string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if err := s.profile.StoreToken(r.Context(), user.Sub, req.Provider, req.Token); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "provider": req.Provider})
}

// handleReadToken handles GET /vault/tokens/{provider}. The raw token is
// never returned, only a masked preview.
func (s *Server) handleReadToken(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	provider := chi.URLParam(r, "provider")
	preview, err := s.profile.TokenPreview(r.Context(), user.Sub, provider)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"provider":      provider,
		"token_preview": preview,
	})
}

// handleContextualWeather handles GET /assistant/contextual-weather.
func (s *Server) handleContextualWeather(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	res, err := s.profile.Weather(r.Context(), user)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleFeedback handles POST /feedback.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.userFrom(w, r); !ok {
		return
	}

	var req struct {
		QueryID        string   `json:"query_id"`
		Rating         int      `json:"rating"`
		Helpful        bool     `json:"helpful"`
		Comment        string   `json:"comment"`
		RelevantDocIDs []string `json:"relevant_doc_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.QueryID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query_id is required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "validation_failed", "rating must be between 1 and 5")
		return
	}

	fb := sqlite.Feedback{
		QueryID:        req.QueryID,
		Rating:         req.Rating,
		Helpful:        req.Helpful,
		Comment:        req.Comment,
		RelevantDocIDs: req.RelevantDocIDs,
	}
	if err := s.store.AddFeedback(r.Context(), fb); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "query_id": req.QueryID})
}

// handleConversation handles GET /conversation/{sessionID}.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	messages, err := s.store.GetConversationHistory(r.Context(), sessionID, 50)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if len(messages) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "No conversation found for this session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"user_id":    user.Sub,
		"messages":   messages,
		"created_at": messages[0].Timestamp,
		"updated_at": messages[len(messages)-1].Timestamp,
	})
}

// handleAnalytics handles GET /analytics. Managers only.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}
	if !s.requireManager(w, user, "view analytics") {
		return
	}

	report, err := s.store.GetAnalytics(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleQueryLogs handles GET /query-logs. Managers see all logs, everyone
// else only their own.
func (s *Server) handleQueryLogs(w http.ResponseWriter, r *http.Request) {
	user, ok := s.userFrom(w, r)
	if !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	userSub := user.Sub
	if user.IsManager() {
		userSub = ""
	}

	logs, err := s.store.ListQueryLogs(r.Context(), userSub, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// handleGenerate handles POST /llm/generate: answer generation over
// caller-supplied context documents, without retrieval.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.userFrom(w, r); !ok {
		return
	}

	var req struct {
		Query       string         `json:"query"`
		ContextDocs []documentJSON `json:"context_docs"`
		History     []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"conversation_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	docs := make([]domain.Document, len(req.ContextDocs))
	for i, d := range req.ContextDocs {
		docs[i] = documentFromJSON(d)
	}
	history := make([]domain.ChatMessage, len(req.History))
	for i, m := range req.History {
		history[i] = domain.ChatMessage{Role: m.Role, Content: m.Content}
	}

	res, err := s.generator.GenerateAnswer(r.Context(), req.Query, docs, history)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":     res.Answer,
		"confidence": res.Confidence,
		"citations":  res.Citations,
	})
}
