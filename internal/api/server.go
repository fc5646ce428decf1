package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/exercise-submitter/internal/cache"
	"github.com/terra-clan/exercise-submitter/internal/config"
	"github.com/terra-clan/exercise-submitter/internal/feedback"
	"github.com/terra-clan/exercise-submitter/internal/health"
	"github.com/terra-clan/exercise-submitter/internal/history"
	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/storage"
	"github.com/terra-clan/exercise-submitter/internal/submission"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

// Directory answers assignment lookups for one user
type Directory interface {
	Assignments(ctx context.Context) ([]models.Exercise, error)
	Exercise(ctx context.Context, exercise string) (models.Exercise, error)
	IsGroupWork(ctx context.Context, exercise string) (bool, error)
	ResolveSubmissionPath(ctx context.Context, exercise string) (models.SubmissionTarget, error)
}

// DirectoryFactory returns the Directory of the owner of creds
type DirectoryFactory func(creds models.Credentials) Directory

// Dependencies are the components served by the API
type Dependencies struct {
	Auth        Authenticator
	LoginCache  cache.Store
	Directories DirectoryFactory
	Submitter   *submission.Submitter
	History     *history.Service
	Translator  *feedback.Translator
	Repo        storage.Repository
	Health      *health.Registry

	// ManagementURL is reported as location of failed management queries
	ManagementURL   string
	SourceExtension string
	FolderLimits    workspace.Limits
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	deps           Dependencies
	authMiddleware *AuthMiddleware
	origins        originPolicy
	upgrader       websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.Health == nil {
		deps.Health = health.NewRegistry()
	}
	s := &Server{
		config:         cfg,
		deps:           deps,
		authMiddleware: NewAuthMiddleware(deps.Auth, deps.LoginCache),
		origins:        newOriginPolicy(cfg.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.origins.checkOrigin,
	}
	s.setupRouter()
	return s
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return s.origins.allows(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		// The progress stream stays open for the whole submission
		r.Get("/submissions/stream", s.handleSubmissionStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))

			r.Get("/assignments", s.handleListAssignments)
			r.Post("/checks", s.handleCheckFolder)

			r.Get("/submissions", s.handleListSubmissions)
			r.Post("/submissions", s.handleSubmit)

			r.Route("/exercises/{exercise}", func(r chi.Router) {
				r.Get("/history", s.handleHistory)
				r.Post("/replay", s.handleReplay)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
