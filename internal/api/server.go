// Package api exposes the phone cleaning service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/artifacts"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phoneclean"
	"github.com/alejandroruanova/phoneclean-service/internal/infrastructure/database/repositories"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Cleaner is the application service the handlers call
type Cleaner interface {
	Upload(ctx context.Context, filename string, data []byte) (*phoneclean.UploadResponse, error)
	Clean(ctx context.Context, req phoneclean.CleanRequest) (*phoneclean.CleanResponse, error)
	Download(ctx context.Context, sessionID string) (*artifacts.Artifact, error)
	Report(ctx context.Context, sessionID string) (*artifacts.Artifact, error)
	History(ctx context.Context, sessionID string) ([]domain.CleaningRun, error)
	Evict(ctx context.Context, sessionID string) error
	Stats(ctx context.Context) (*repositories.RunStats, error)
}

// HealthReporter is implemented by the Redis and Postgres wrappers
type HealthReporter interface {
	Health(ctx context.Context) map[string]interface{}
}

// ServerConfig for the HTTP server
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Backend        string
}

// Server is the HTTP server for the cleaning API
type Server struct {
	config  ServerConfig
	service Cleaner
	health  map[string]HealthReporter
	router  *chi.Mux
	server  *http.Server
	logger  *slog.Logger
}

// NewServer creates a server and wires its routes
func NewServer(config ServerConfig, service Cleaner, health map[string]HealthReporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 2 * time.Minute
	}
	if health == nil {
		health = map[string]HealthReporter{}
	}

	s := &Server{
		config:  config,
		service: service,
		health:  health,
		router:  chi.NewRouter(),
		logger:  logger,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.RequestTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json", "text/csv", "text/plain"))
	s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	s.router.Use(cors)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)

	s.router.Post("/upload", s.handleUpload)
	s.router.Post("/clean", s.handleClean)
	s.router.Get("/download/{sessionID}", s.handleDownload)
	s.router.Get("/report/{sessionID}", s.handleReport)
	s.router.Get("/history/{sessionID}", s.handleHistory)
	s.router.Delete("/session/{sessionID}", s.handleEvict)
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.config.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// cors allows any origin, like a public upload tool
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request with the chi request id
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
