package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/intentgraph/intentgraph/internal/handler"
	"github.com/intentgraph/intentgraph/internal/middleware"
	"github.com/intentgraph/intentgraph/internal/retrieval"
	"github.com/intentgraph/intentgraph/internal/security"
	"github.com/rs/zerolog/log"
)

// Routes builds the HTTP handler. ctx bounds the rate limiter's cleanup
// goroutine.
func Routes(ctx context.Context, app *App) http.Handler {
	cfg := app.Config

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Security ───────────────────────────────────────────────────────────────
	var pii *security.PIIDetector
	if cfg.EnablePIIDetection {
		pii = security.NewPIIDetector(cfg.PIIKeywords)
	}
	audit := security.NewAuditLogger(cfg.EnableAuditLogging)
	guard := handler.NewGuard(security.NewPromptValidator(cfg.MaxPromptLength), pii, audit)

	// ─── Handlers ────────────────────────────────────────────────────────────────
	var store retrieval.Store
	if app.Retriever != nil {
		store = app.Retriever.Store()
	}
	healthH := handler.NewHealthHandler(app.Oracle, store)
	chatH := handler.NewChatHandler(app.Orchestrator, guard, audit, time.Duration(cfg.RunTimeout)*time.Second, cfg.MaxSteps)
	graphH := handler.NewGraphHandler(app.Orchestrator)

	var knowledgeH *handler.KnowledgeHandler
	if app.Knowledge != nil {
		knowledgeH = handler.NewKnowledgeHandler(app.Knowledge, app.Retriever, guard)
	}

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Group(func(r chi.Router) {
		if cfg.EnableAuth {
			r.Use(middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
		}
		if cfg.RateLimitPerMinute > 0 {
			r.Use(middleware.RateLimit(ctx, cfg.RateLimitPerMinute, cfg.APIKeyHeader))
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/chat", chatH.Chat)
			r.Get("/graph", graphH.Graph)

			if knowledgeH != nil {
				r.Route("/knowledge", func(r chi.Router) {
					r.Post("/ask", knowledgeH.Ask)
					r.Post("/search", knowledgeH.Search)
				})
			}
		})
	})

	return r
}
