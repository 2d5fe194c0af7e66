package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/auth"
	"github.com/privara/docsearch/internal/authz"
	"github.com/privara/docsearch/internal/index/vector"
	"github.com/privara/docsearch/internal/repository/sqlite"
	"github.com/privara/docsearch/internal/transport/mock"
	"github.com/privara/docsearch/internal/transport/weather"
	healthuc "github.com/privara/docsearch/internal/usecase/health"
	profileuc "github.com/privara/docsearch/internal/usecase/profile"
	queryuc "github.com/privara/docsearch/internal/usecase/query"
	searchuc "github.com/privara/docsearch/internal/usecase/search"
)

// newTestServer wires the full API against a seeded temp database, the mock
// embedder and the mock answer generator.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerTopK(t, 10)
}

func newTestServerTopK(t *testing.T, queryTopK int) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.SeedSampleData(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	index := vector.New(mock.NewEmbedder(64))
	engine := searchuc.NewEngine(index, store, logger)
	if err := engine.Build(ctx); err != nil {
		t.Fatalf("build index: %v", err)
	}

	issuer := auth.NewIssuer("test-secret", time.Hour)
	authzClient := authz.New("", "", store, auth.RoleForUsername, logger)
	generator := mock.NewGenerator()
	weatherClient := weather.New("offline", "", logger)

	querySvc := queryuc.NewService(engine, store, store, store, authzClient, generator, logger)
	profileSvc := profileuc.NewService(store, store, weatherClient, logger)
	healthSvc := healthuc.New(store, nil, engine)

	server := NewServer(issuer, querySvc, engine, profileSvc, healthSvc, authzClient, store, generator, queryTopK, logger)

	r := chi.NewRouter()
	r.Use(auth.Middleware(issuer))
	server.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// do issues a JSON request and decodes the JSON response body into a map.
func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response of %s %s: %v", method, path, err)
	}
	return resp.StatusCode, decoded
}

func login(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	status, body := do(t, srv, http.MethodPost, "/login", "", map[string]string{"username": username})
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", username, status, body)
	}
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatalf("login %s: no access token in %v", username, body)
	}
	return token
}

func resultIDs(body map[string]any) []string {
	raw, _ := body["results"].([]any)
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		m, _ := r.(map[string]any)
		if id, ok := m["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)

	status, _ := do(t, srv, http.MethodPost, "/login", "", map[string]string{"username": "mallory"})
	if status != http.StatusUnauthorized {
		t.Errorf("unknown user: status %d, want 401", status)
	}

	status, body := do(t, srv, http.MethodPost, "/login", "", map[string]string{"username": "alice"})
	if status != http.StatusOK {
		t.Fatalf("login alice: status %d", status)
	}
	if body["token_type"] != "bearer" {
		t.Errorf("token_type = %v", body["token_type"])
	}
	user, _ := body["user"].(map[string]any)
	if user["username"] != "alice" || user["role"] != "employee" {
		t.Errorf("user = %v", user)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	status, _ := do(t, srv, http.MethodPost, "/query", "", map[string]string{"query": "budget"})
	if status != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", status)
	}

	status, _ = do(t, srv, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Errorf("health must be exempt, status %d", status)
	}
}

func TestQuery_AccessControl(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")

	status, body := do(t, srv, http.MethodPost, "/query", alice, map[string]any{"query": "salary budget"})
	if status != http.StatusOK {
		t.Fatalf("alice query: status %d body %v", status, body)
	}
	for _, id := range resultIDs(body) {
		if id == "doc_salary_2024" {
			t.Error("alice must not see the sensitive salary document")
		}
	}
	if body["query_id"] == "" || body["session_id"] == "" {
		t.Error("query and session ids missing")
	}
	if _, ok := body["generated_answer"]; !ok && len(resultIDs(body)) > 0 {
		t.Error("expected a generated answer alongside results")
	}

	status, body = do(t, srv, http.MethodPost, "/query", bob, map[string]any{"query": "salary"})
	if status != http.StatusOK {
		t.Fatalf("bob query: status %d", status)
	}
	found := false
	for _, id := range resultIDs(body) {
		if id == "doc_salary_2024" {
			found = true
		}
	}
	if !found {
		t.Errorf("bob must see the salary document, got %v", resultIDs(body))
	}
}

func TestQuery_ConfiguredDefaultTopK(t *testing.T) {
	srv := newTestServerTopK(t, 1)
	bob := login(t, srv, "bob")

	// bob can view both seeded documents; the configured default caps the
	// result list when the request leaves top_k unset.
	status, body := do(t, srv, http.MethodPost, "/query", bob, map[string]any{"query": "salary budget"})
	if status != http.StatusOK {
		t.Fatalf("query: status %d", status)
	}
	if got := resultIDs(body); len(got) != 1 {
		t.Errorf("results = %v, want exactly 1 with query_top_k=1", got)
	}

	// An explicit top_k still wins over the configured default.
	status, body = do(t, srv, http.MethodPost, "/query", bob, map[string]any{"query": "salary budget", "top_k": 2})
	if status != http.StatusOK {
		t.Fatalf("query: status %d", status)
	}
	if got := resultIDs(body); len(got) != 2 {
		t.Errorf("results = %v, want 2 with explicit top_k", got)
	}
}

func TestQuery_Validation(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")

	status, body := do(t, srv, http.MethodPost, "/query", alice, map[string]any{"query": "x", "top_k": 1000})
	if status != http.StatusBadRequest {
		t.Errorf("oversized top_k: status %d body %v", status, body)
	}
	if body["code"] != "validation_failed" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestManagerOnlyEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/documents", map[string]string{"id": "d", "title": "t", "content": "c"}},
		{http.MethodPost, "/admin/reindex", nil},
		{http.MethodGet, "/admin/fga", nil},
		{http.MethodPost, "/admin/fga", map[string]string{"subject": "s", "relation": "r", "object": "o"}},
		{http.MethodGet, "/analytics", nil},
	}
	for _, tc := range cases {
		status, _ := do(t, srv, tc.method, tc.path, alice, tc.body)
		if status != http.StatusForbidden {
			t.Errorf("%s %s as employee: status %d, want 403", tc.method, tc.path, status)
		}
	}
}

func TestAddDocumentAndReindex(t *testing.T) {
	srv := newTestServer(t)
	bob := login(t, srv, "bob")
	alice := login(t, srv, "alice")

	status, body := do(t, srv, http.MethodPost, "/documents", bob, map[string]any{
		"id": "doc_onboarding", "title": "Onboarding Guide", "content": "Welcome aboard. Onboarding checklist and first week plan.",
	})
	if status != http.StatusOK {
		t.Fatalf("add document: status %d body %v", status, body)
	}

	status, body = do(t, srv, http.MethodPost, "/admin/fga", bob, map[string]string{
		"subject": "role:employee", "relation": "can_view", "object": "document:doc_onboarding",
	})
	if status != http.StatusOK {
		t.Fatalf("add relationship: status %d body %v", status, body)
	}

	status, body = do(t, srv, http.MethodPost, "/admin/reindex", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("reindex: status %d", status)
	}
	if body["indexed"] != float64(3) {
		t.Errorf("indexed = %v, want 3", body["indexed"])
	}

	status, body = do(t, srv, http.MethodPost, "/query", alice, map[string]any{"query": "onboarding checklist"})
	if status != http.StatusOK {
		t.Fatalf("query: status %d", status)
	}
	found := false
	for _, id := range resultIDs(body) {
		if id == "doc_onboarding" {
			found = true
		}
	}
	if !found {
		t.Errorf("new document missing from results: %v", resultIDs(body))
	}

	// Incomplete documents are rejected.
	status, _ = do(t, srv, http.MethodPost, "/documents", bob, map[string]string{"id": "x"})
	if status != http.StatusBadRequest {
		t.Errorf("incomplete document: status %d, want 400", status)
	}
}

func TestFGAEndpoints(t *testing.T) {
	srv := newTestServer(t)
	bob := login(t, srv, "bob")

	// Unauthenticated mock check consults the local store.
	status, body := do(t, srv, http.MethodPost, "/fga/check", "", map[string]string{
		"subject": "user:bob", "relation": "can_view", "object": "document:doc_salary_2024",
	})
	if status != http.StatusOK || body["allowed"] != true {
		t.Errorf("seeded tuple: status %d allowed %v", status, body["allowed"])
	}
	status, body = do(t, srv, http.MethodPost, "/fga/check", "", map[string]string{
		"subject": "user:alice", "relation": "can_view", "object": "document:doc_salary_2024",
	})
	if status != http.StatusOK || body["allowed"] != false {
		t.Errorf("missing tuple: status %d allowed %v", status, body["allowed"])
	}

	status, body = do(t, srv, http.MethodGet, "/admin/fga", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("list relationships: status %d", status)
	}
	if rels, _ := body["results"].([]any); len(rels) != 3 {
		t.Errorf("relationships = %d, want 3 seeded", len(rels))
	}

	status, _ = do(t, srv, http.MethodDelete, "/admin/fga", bob, map[string]string{
		"subject": "user:bob", "relation": "can_view", "object": "document:doc_salary_2024",
	})
	if status != http.StatusOK {
		t.Errorf("remove: status %d", status)
	}
	status, _ = do(t, srv, http.MethodDelete, "/admin/fga", bob, map[string]string{
		"subject": "user:bob", "relation": "can_view", "object": "document:doc_salary_2024",
	})
	if status != http.StatusNotFound {
		t.Errorf("second remove: status %d, want 404", status)
	}
}

func TestSettingsAndWeather(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")

	status, _ := do(t, srv, http.MethodGet, "/me/settings", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("settings before save: status %d, want 404", status)
	}
	status, _ = do(t, srv, http.MethodGet, "/assistant/contextual-weather", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("weather before settings: status %d, want 404", status)
	}

	status, _ = do(t, srv, http.MethodPut, "/me/settings", alice, map[string]string{"city": "Oslo", "theme": "dark"})
	if status != http.StatusOK {
		t.Fatalf("save settings: status %d", status)
	}

	status, body := do(t, srv, http.MethodGet, "/me/settings", alice, nil)
	if status != http.StatusOK || body["city"] != "Oslo" {
		t.Errorf("settings = %v (status %d)", body, status)
	}

	status, body = do(t, srv, http.MethodGet, "/assistant/contextual-weather", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("weather: status %d", status)
	}
	msg, _ := body["message"].(string)
	if msg == "" {
		t.Fatal("weather message missing")
	}
	if !strings.Contains(msg, "preferred city is Oslo") {
		t.Errorf("message = %q, want it to mention the preferred city", msg)
	}
	report, _ := body["weather"].(map[string]any)
	if report["provider"] != "offline-sample" {
		t.Errorf("weather provider = %v", report["provider"])
	}
}

func TestVaultTokens(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")

	status, _ := do(t, srv, http.MethodGet, "/vault/tokens/weather", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("missing token: status %d, want 404", status)
	}

	status, _ = do(t, srv, http.MethodPost, "/vault/tokens", alice, map[string]string{"provider": "weather"})
	if status != http.StatusBadRequest {
		t.Errorf("empty token: status %d, want 400", status)
	}

	status, _ = do(t, srv, http.MethodPost, "/vault/tokens", alice, map[string]string{
		"provider": "weather", "token": "wx-1234567890secret",
	})
	if status != http.StatusOK {
		t.Fatalf("store token: status %d", status)
	}

	status, body := do(t, srv, http.MethodGet, "/vault/tokens/weather", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("read token: status %d", status)
	}
	if body["token_preview"] != "wx-1...cret" {
		t.Errorf("preview = %v", body["token_preview"])
	}
}

func TestFeedbackAndConversation(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")

	status, qbody := do(t, srv, http.MethodPost, "/query", alice, map[string]any{
		"query": "budget", "session_id": "sess-1",
	})
	if status != http.StatusOK {
		t.Fatalf("query: status %d", status)
	}
	queryID, _ := qbody["query_id"].(string)

	status, _ = do(t, srv, http.MethodPost, "/feedback", alice, map[string]any{"query_id": queryID, "rating": 9})
	if status != http.StatusBadRequest {
		t.Errorf("rating out of range: status %d, want 400", status)
	}
	status, _ = do(t, srv, http.MethodPost, "/feedback", alice, map[string]any{
		"query_id": queryID, "rating": 4, "helpful": true, "relevant_doc_ids": []string{"doc_budget_q4"},
	})
	if status != http.StatusOK {
		t.Errorf("feedback: status %d", status)
	}

	status, body := do(t, srv, http.MethodGet, "/conversation/sess-1", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("conversation: status %d", status)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) < 2 {
		t.Errorf("messages = %d, want user and assistant turns", len(msgs))
	}

	status, _ = do(t, srv, http.MethodGet, "/conversation/no-such-session", alice, nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown session: status %d, want 404", status)
	}
}

func TestQueryLogsAndAnalytics(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")
	bob := login(t, srv, "bob")

	for i := 0; i < 2; i++ {
		status, _ := do(t, srv, http.MethodPost, "/query", alice, map[string]any{"query": fmt.Sprintf("budget %d", i)})
		if status != http.StatusOK {
			t.Fatalf("query %d: status %d", i, status)
		}
	}

	status, body := do(t, srv, http.MethodGet, "/query-logs", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("query logs: status %d", status)
	}
	if logs, _ := body["logs"].([]any); len(logs) != 2 {
		t.Errorf("alice logs = %d, want 2", len(logs))
	}

	status, _ = do(t, srv, http.MethodGet, "/query-logs?limit=abc", alice, nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad limit: status %d, want 400", status)
	}

	status, body = do(t, srv, http.MethodGet, "/analytics", bob, nil)
	if status != http.StatusOK {
		t.Fatalf("analytics: status %d", status)
	}
	if body["total_queries"] != float64(2) {
		t.Errorf("total_queries = %v, want 2", body["total_queries"])
	}
}

func TestGenerate(t *testing.T) {
	srv := newTestServer(t)
	alice := login(t, srv, "alice")

	status, _ := do(t, srv, http.MethodPost, "/llm/generate", alice, map[string]any{"context_docs": []any{}})
	if status != http.StatusBadRequest {
		t.Errorf("missing query: status %d, want 400", status)
	}

	status, body := do(t, srv, http.MethodPost, "/llm/generate", alice, map[string]any{
		"query": "what is the leave policy?",
		"context_docs": []map[string]string{
			{"id": "d1", "title": "Leave Policy", "content": "Employees accrue 25 days of leave per year."},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("generate: status %d", status)
	}
	if body["answer"] == "" {
		t.Error("answer missing")
	}
	if body["confidence"] != 0.7 {
		t.Errorf("confidence = %v, want mock 0.7", body["confidence"])
	}
	citations, _ := body["citations"].([]any)
	if len(citations) != 1 || citations[0] != "d1" {
		t.Errorf("citations = %v", citations)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health: status %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["indexed_documents"] != float64(2) {
		t.Errorf("indexed_documents = %v, want 2", body["indexed_documents"])
	}
}
