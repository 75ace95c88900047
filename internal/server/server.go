// Package server exposes the retrieval core over HTTP: a JSON search API,
// document management, and a WebSocket chat endpoint that answers
// questions against the archive.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mybrainlabs/recall/internal/llm"
	"github.com/mybrainlabs/recall/internal/reranker"
	"github.com/mybrainlabs/recall/internal/retriever"
	"github.com/mybrainlabs/recall/internal/router"
	"github.com/mybrainlabs/recall/internal/store"
)

// ProviderResolver maps a routed model name to an answer provider. Tests
// substitute a stub; production wiring uses llm.ProviderForModel.
type ProviderResolver func(model string) (llm.Provider, error)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string

	// RetrieveLimit is the candidate count fetched before reranking;
	// RerankLimit is the final result count.
	RetrieveLimit int
	RerankLimit   int
}

// Server wires the retrieval pipeline behind HTTP and WebSocket endpoints.
type Server struct {
	cfg        Config
	store      store.Store
	retriever  *retriever.Retriever
	reranker   *reranker.Reranker
	answers    *router.Router
	providers  ProviderResolver
	mux        chi.Router
	httpServer *http.Server
}

// New creates a server. reranker may be nil when no precision index is
// configured; providers may be nil to disable answering.
func New(cfg Config, st store.Store, rt *retriever.Retriever, rr *reranker.Reranker, answers *router.Router, providers ProviderResolver) *Server {
	if cfg.RetrieveLimit <= 0 {
		cfg.RetrieveLimit = 30
	}
	if cfg.RerankLimit <= 0 {
		cfg.RerankLimit = 10
	}
	s := &Server{
		cfg:       cfg,
		store:     st,
		retriever: rt,
		reranker:  rr,
		answers:   answers,
		providers: providers,
	}
	s.mux = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Post("/ask", s.handleAsk)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
	})

	r.Get("/chat", s.handleChat)

	return r
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() chi.Router { return s.mux }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("recall server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
