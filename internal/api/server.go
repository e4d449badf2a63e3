// Package api serves predictions, history and model details over HTTP, and
// streams prediction changes over a websocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"roulette-dozen/internal/engine"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics is what the HTTP layer records.
type Metrics interface {
	HTTPRequestsInc(route string, code int)
	RateLimitedInc()
}

// Config holds server settings.
type Config struct {
	Port           int
	RateLimit      float64 // requests per second per client
	RateBurst      int
	RequestTimeout time.Duration
}

// Server is the HTTP front of an engine.
type Server struct {
	engine   *engine.Engine
	stream   http.Handler
	gatherer prometheus.Gatherer
	metrics  Metrics
	limiter  *clientLimiter
	cfg      Config

	router *mux.Router
	server *http.Server
}

// New wires the routes. stream serves /ws and may be nil; gatherer defaults
// to the Prometheus default registry; metrics may be nil.
func New(cfg Config, eng *engine.Engine, stream http.Handler, gatherer prometheus.Gatherer, metrics Metrics) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		engine:   eng,
		stream:   stream,
		gatherer: gatherer,
		metrics:  metrics,
		limiter:  newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		cfg:      cfg,
		router:   mux.NewRouter(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.stream != nil {
		s.router.Handle("/ws", s.stream).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.rateLimitMiddleware)
	api.Use(s.timeoutMiddleware)
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/previsao-duzia", s.handlePredict).Methods(http.MethodGet)
	api.HandleFunc("/ver-historico", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/capturar-resultado", s.handleCapture).Methods(http.MethodGet)
	api.HandleFunc("/resultado", s.handleIngest).Methods(http.MethodPost)
	api.HandleFunc("/train", s.handleTrain).Methods(http.MethodPost)
	api.HandleFunc("/model", s.handleModel).Methods(http.MethodGet)
	api.HandleFunc("/model/versions", s.handleVersions).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
