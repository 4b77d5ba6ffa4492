// Package httpapi exposes filter search over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/logger"
	"github.com/roach88/sieve/internal/search"
)

const baseURL = "/v1"

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// RouterConfig wires the router.
type RouterConfig struct {
	Service      *search.Service
	Logger       logger.Logger
	Tokens       auth.Tokens
	CORSOrigins  []string
	MaxBodyBytes int64
	MaxDepth     int
}

// NewRouter builds the HTTP handler:
//
//	GET  /healthz
//	GET  /v1/entities
//	GET  /v1/search/{entity}?filter=<json>&limit=&offset=
//	POST /v1/search/{entity}
//	POST /v1/compile/{entity}
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = filter.DefaultMaxDepth
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &Handler{svc: cfg.Service, log: cfg.Logger, maxDepth: cfg.MaxDepth}

	router := chi.NewRouter()
	router.Use(RequestID())
	router.Use(chimiddleware.RealIP)
	router.Use(Recovery(cfg.Logger))
	router.Use(AccessLogger(cfg.Logger))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{RequestIDHeader},
	}).Handler)

	router.Get("/healthz", h.healthz)

	router.Route(baseURL, func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens))
		r.Use(Decompress(cfg.MaxBodyBytes))

		r.Get("/entities", h.entities)
		r.Get("/search/{entity}", h.searchQuery)
		r.Post("/search/{entity}", h.searchBody)
		r.Post("/compile/{entity}", h.compile)
	})

	return router
}
