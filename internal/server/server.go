// Package server provides the HTTP API for CV ingestion and the draft it produces.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cv-ingest/internal/config"
	"github.com/jonathan/cv-ingest/internal/db"
	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/pipeline"
	"github.com/jonathan/cv-ingest/internal/server/middleware"
	"github.com/jonathan/cv-ingest/internal/server/ratelimit"
	"github.com/jonathan/cv-ingest/internal/types"
)

// Ingester runs ingestions. Implemented by *pipeline.Controller.
type Ingester interface {
	Ingest(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	State() pipeline.State
}

// DraftReader returns an owner's draft. Implemented by *draft.Writer.
type DraftReader interface {
	GetDraft(ctx context.Context, owner uuid.UUID) (*types.CVState, error)
}

// DraftEvents delivers draft refresh signals. Implemented by *draft.Broadcaster.
type DraftEvents interface {
	Subscribe(owner uuid.UUID) (<-chan struct{}, func())
}

// RunHistory reads ingestion run records. Implemented by *db.DB.
type RunHistory interface {
	ListRuns(ctx context.Context, userID uuid.UUID, limit int) ([]db.IngestionRun, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*db.IngestionRun, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	ingester       Ingester
	drafts         DraftReader
	events         DraftEvents
	runs           RunHistory
	rateLimiter    *ratelimit.Limiter
	jwtService     *JWTService
	maxUploadBytes int64
	heartbeat      time.Duration
	onShutdown     func()
}

// Config holds server configuration
type Config struct {
	Port           int
	Ingester       Ingester
	Drafts         DraftReader
	Events         DraftEvents
	// Runs may be nil when runs are not recorded
	Runs           RunHistory
	JWT            *config.JWTConfig
	MaxUploadBytes int64
	// RateLimit nil loads limits from the environment
	RateLimit *ratelimit.Config
	// OnShutdown runs after the listener has drained, e.g. to close the database
	OnShutdown func()
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Ingester == nil || cfg.Drafts == nil || cfg.Events == nil {
		return nil, fmt.Errorf("server requires an ingester, a draft reader and a draft event source")
	}
	if cfg.JWT == nil {
		return nil, fmt.Errorf("server requires a JWT configuration")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = ingestion.MaxUploadBytes
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}

	s := &Server{
		ingester:       cfg.Ingester,
		drafts:         cfg.Drafts,
		events:         cfg.Events,
		runs:           cfg.Runs,
		rateLimiter:    ratelimit.NewLimiter(cfg.RateLimit),
		jwtService:     NewJWTService(cfg.JWT),
		maxUploadBytes: cfg.MaxUploadBytes,
		heartbeat:      15 * time.Second,
		onShutdown:     cfg.OnShutdown,
	}

	auth := middleware.AuthMiddleware(s.jwtService)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /cv/ingest", protected(s.handleIngest))
	mux.Handle("POST /cv/ingest/stream", protected(s.handleIngestStream))
	mux.Handle("GET /cv/ingest/status", protected(s.handleIngestStatus))
	mux.Handle("GET /cv/ingest/runs", protected(s.handleListRuns))
	mux.Handle("GET /cv/ingest/runs/{id}", protected(s.handleGetRun))
	mux.Handle("GET /cv/draft", protected(s.handleGetDraft))
	mux.Handle("GET /cv/draft/events", protected(s.handleDraftEvents))

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout: 30 * time.Second,
		// OCR plus parsing can take minutes; event streams are open-ended
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown drains in-flight requests and releases resources
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	if s.onShutdown != nil {
		s.onShutdown()
	}
	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their budget with 429
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
		}
		if !allowed {
			if info.RetryAfter > 0 {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())+1))
			}
			log.Printf("[rate-limit] %s %s rejected for %s", r.Method, r.URL.Path, clientID(r))
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// clientID is the remote IP without the port
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, ErrorResponse{Error: message})
}

// writeError maps err to a status and body
func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.jsonResponse(w, HTTPStatus(err), newErrorResponse(err))
}
