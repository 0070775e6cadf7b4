// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	applog "kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/services"
)

const (
	// readTimeout bounds a single store read.
	readTimeout = 7 * time.Second
	// writeTimeout covers a store write plus the reload that follows it.
	writeTimeout = 15 * time.Second
)

// Server wraps http.Server with the ledger routes and the goroutines the
// middleware owns.
type Server struct {
	http.Server
	service      *services.RecordService
	limiter      *ratelimit.Limiter
	logger       *applog.Logger
	ready        func(context.Context) error
	logout       func(context.Context) error
	now          func() time.Time
	limits       ratelimit.Config
	shutdownOnce sync.Once
}

type Option func(*Server)

// WithReadiness sets the /readyz check. Without one the server is always
// ready.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// WithLogout sets what POST /api/logout does besides resetting the session,
// typically clearing the stored token.
func WithLogout(fn func(context.Context) error) Option {
	return func(s *Server) { s.logout = fn }
}

func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.limits = cfg }
}

// WithClock replaces time.Now, which decides whether the viewed month can
// advance.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.RecordService, opts ...Option) *Server {
	s := &Server{
		service: svc,
		now:     time.Now,
		limits:  ratelimit.DefaultConfig(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	s.limiter = ratelimit.NewLimiter(s.limits)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      2 * writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, codeNotFound, "").Write(w)
	})
	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.limiter.Middleware(extractClientIP, s.onRateLimit,
			http.MethodPost, http.MethodPut, http.MethodDelete))

		r.Get("/options", s.handleOptions)

		r.Get("/ledger", s.handleLedger)
		r.Post("/ledger/prev", s.handleMove(-1))
		r.Post("/ledger/next", s.handleMove(+1))
		r.Get("/ledger/export", s.handleExport)

		r.Post("/records", s.handleCreateRecord)
		r.Put("/records/{row}", s.handleUpdateRecord)
		r.Delete("/records/{row}", s.handleDeleteRecord)

		r.Post("/reload", s.handleReload)
		r.Post("/logout", s.handleLogout)
	})
	return r
}

// accessLog logs every finished request with its status and duration.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		events := applog.NewStructuredLogger(applog.FromContext(r.Context()))
		events.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), extractClientIP(r))
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, extractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, codeRateLimited, "").Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
