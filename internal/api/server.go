package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pro804501/evaluateai-ai-backend/internal/config"
	"github.com/pro804501/evaluateai-ai-backend/internal/engine"
	"github.com/pro804501/evaluateai-ai-backend/internal/quota"
	"github.com/pro804501/evaluateai-ai-backend/internal/ratelimit"
	"github.com/pro804501/evaluateai-ai-backend/internal/shop"
	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	engine         engine.Engine
	ledger         *quota.Ledger
	shop           *shop.Service
	repo           storage.Repository
	limiter        *ratelimit.Limiter
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	eng engine.Engine,
	ledger *quota.Ledger,
	shopService *shop.Service,
	repo storage.Repository,
	limiter *ratelimit.Limiter,
) *Server {
	s := &Server{
		config:         cfg,
		engine:         eng,
		ledger:         ledger,
		shop:           shopService,
		repo:           repo,
		limiter:        limiter,
		authMiddleware: NewAuthMiddleware(repo),
	}
	s.setupRouter()
	return s
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
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
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

		// Evaluators and their grading workflow
		r.Route("/evaluators", func(r chi.Router) {
			r.Get("/", s.handleListEvaluators)
			r.Post("/", s.handleCreateEvaluator)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", s.handleUpdateEvaluator)
				r.Delete("/", s.handleDeleteEvaluator)

				r.Get("/evaluation", s.handleGetEvaluation)
				r.Post("/evaluation/sheets", s.handleSetAnswerSheets)
				r.Delete("/evaluation", s.handleDeleteEvaluation)

				r.Post("/grade", s.handleGrade)
				r.Post("/regrade", s.handleRegrade)

				r.Get("/results", s.handleClassResults)
				r.Get("/results/{rollNo}", s.handleSingleResult)
				r.Post("/results", s.handleSaveResults)
			})
		})

		// Class rosters
		r.Route("/classes", func(r chi.Router) {
			r.Get("/", s.handleListClasses)
			r.Post("/", s.handleCreateClass)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetClass)
				r.Put("/", s.handleUpdateClass)
				r.Delete("/", s.handleDeleteClass)
				r.Post("/students", s.handleAddStudent)
				r.Delete("/students/{rollNo}", s.handleRemoveStudent)
			})
		})

		// Limits shop
		r.Route("/shop", func(r chi.Router) {
			r.Get("/items", s.handleListShopItems)
			r.Get("/purchases", s.handleListPurchases)
			r.With(s.authMiddleware.RequireAdmin).Post("/fulfill", s.handleFulfill)
		})

		// Remaining limits
		r.Get("/limits", s.handleGetLimits)
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
