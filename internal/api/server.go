// internal/api/server.go

// Package api exposes the HTTP functions: sync, webhook intake, code analysis and dashboards.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spygit/internal/analysis"
	"spygit/internal/syncer"
	"spygit/internal/webhook"
	"spygit/pkg/logger/sl"
)

type Syncer interface {
	SyncStudent(ctx context.Context, studentID, token string) (syncer.Summary, error)
	SyncStoredToken(ctx context.Context, userID string) (syncer.Summary, error)
}

type WebhookReceiver interface {
	Handle(ctx context.Context, d webhook.Delivery) (webhook.Outcome, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.Result, error)
}

type Dashboards interface {
	Build(ctx context.Context, userID, dashboardType string) (any, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Authenticator turns a request handler into one that only runs for verified callers.
type Authenticator interface {
	Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler
}

// Server holds the dependencies of the HTTP functions.
type Server struct {
	log        *slog.Logger
	syncer     Syncer
	webhooks   WebhookReceiver
	analyzer   Analyzer
	dashboards Dashboards
	auth       Authenticator
	db         Pinger
}

type Deps struct {
	Syncer     Syncer
	Webhooks   WebhookReceiver
	Analyzer   Analyzer
	Dashboards Dashboards
	Auth       Authenticator
	DB         Pinger
}

func NewServer(log *slog.Logger, deps Deps) *Server {
	return &Server{
		log:        log.With("component", "api"),
		syncer:     deps.Syncer,
		webhooks:   deps.Webhooks,
		analyzer:   deps.Analyzer,
		dashboards: deps.Dashboards,
		auth:       deps.Auth,
		db:         deps.DB,
	}
}

// Routes builds the router with the middleware stack and every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(s.logRequest)
	r.Use(s.metricsMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"authorization", "x-client-info", "apikey", "content-type",
			"x-github-event", "x-hub-signature-256",
		},
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/functions/v1", func(r chi.Router) {
		r.Post("/sync-github-data", s.syncGithubData)
		r.Post("/github-webhook", s.githubWebhook)
		r.Post("/analyze-code", s.analyzeCode)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware(s.respondError))
			r.Post("/fetch-github-data", s.fetchGithubData)
			r.Post("/dashboard-data", s.dashboardData)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Error("Health check failed", sl.Err(err))
			s.respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
