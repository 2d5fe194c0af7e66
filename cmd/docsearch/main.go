package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/auth"
	"github.com/privara/docsearch/internal/authz"
	"github.com/privara/docsearch/internal/config"
	"github.com/privara/docsearch/internal/domain"
	"github.com/privara/docsearch/internal/index/vector"
	logpkg "github.com/privara/docsearch/internal/logger"
	"github.com/privara/docsearch/internal/metrics"
	"github.com/privara/docsearch/internal/repository/sqlite"
	chiTransport "github.com/privara/docsearch/internal/transport/chi"
	mockTransport "github.com/privara/docsearch/internal/transport/mock"
	openaiTransport "github.com/privara/docsearch/internal/transport/openai"
	"github.com/privara/docsearch/internal/transport/weather"
	healthuc "github.com/privara/docsearch/internal/usecase/health"
	profileuc "github.com/privara/docsearch/internal/usecase/profile"
	queryuc "github.com/privara/docsearch/internal/usecase/query"
	searchuc "github.com/privara/docsearch/internal/usecase/search"
	"github.com/privara/docsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.SeedSampleData(ctx); err != nil {
		logger.Fatal("Failed to seed sample data", zap.Error(err))
	}
	logger.Info("Database ready")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	embedder := buildEmbedder(cfg, logger)
	index := vector.New(embedder)
	engine := searchuc.NewEngine(index, store, logger)

	if cfg.Search.BuildOnStart {
		if err := engine.Build(ctx); err != nil {
			logger.Error("Initial index build failed, serving empty index", zap.Error(err))
		} else {
			logger.Info("Index built", zap.Int("documents", engine.Size()))
		}
	}

	issuer := auth.NewIssuer(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLMin)*time.Minute)
	authzClient := authz.New(cfg.FGA.URL, cfg.FGA.Token, store, auth.RoleForUsername, logger)
	generator := buildGenerator(cfg, logger)
	weatherClient := weather.New(cfg.Weather.Mode, cfg.Weather.BaseURL, logger)

	querySvc := queryuc.NewService(engine, store, store, store, authzClient, generator, logger)
	profileSvc := profileuc.NewService(store, store, weatherClient, logger)
	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), engine)

	server := chiTransport.NewServer(
		issuer, querySvc, engine, profileSvc, healthSvc, authzClient, store, generator,
		cfg.Search.QueryTopK, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(auth.Middleware(issuer))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder selects the configured embedding provider.
func buildEmbedder(cfg config.Config, logger *zap.Logger) domain.Embedder {
	if cfg.Embedding.Provider == "openai" {
		return openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	}
	return mockTransport.NewEmbedder(cfg.Embedding.Dimensions)
}

// buildGenerator selects the configured answer generator.
func buildGenerator(cfg config.Config, logger *zap.Logger) domain.AnswerGenerator {
	if cfg.LLM.Provider == "openai" {
		return openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
	}
	return mockTransport.NewGenerator()
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
