package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsearch/internal/config"
	"github.com/JakeFAU/carsearch/internal/inventory"
	"github.com/JakeFAU/carsearch/internal/query"
	"github.com/JakeFAU/carsearch/internal/search"
	"github.com/JakeFAU/carsearch/internal/seo"
	"github.com/JakeFAU/carsearch/internal/telemetry"
)

const (
	requestTimeout = 30 * time.Second
	readyTimeout   = 2 * time.Second
	adminTimeout   = 5 * time.Second
)

// PageEvaluator resolves a request and decides its SEO directive.
type PageEvaluator interface {
	Resolve(path string, values url.Values) seo.Resolution
	Decide(ctx context.Context, res seo.Resolution, totalCount int, car *inventory.Car) seo.Directive
}

// Searcher runs a normalized query over an inventory snapshot.
type Searcher interface {
	Search(ctx context.Context, cond query.FilterCondition, cars []inventory.Car) search.Result
}

// Inventory serves the cached car snapshot.
type Inventory interface {
	Cars(ctx context.Context) []inventory.Car
	FindCar(ctx context.Context, id string) (inventory.Car, error)
}

// QueryNormalizer turns raw parameters into a FilterCondition.
type QueryNormalizer interface {
	Normalize(values url.Values) query.FilterCondition
}

// AllowlistAdmin lists and edits indexable paths.
type AllowlistAdmin interface {
	AllPaths(ctx context.Context) []string
	Add(ctx context.Context, path string) (string, error)
	Remove(ctx context.Context, path string) error
}

// ReadinessCheck reports whether a downstream dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators behind the handlers. Allowlist, RateLimit, and
// Ready are optional.
type Deps struct {
	Evaluator  PageEvaluator
	Searcher   Searcher
	Inventory  Inventory
	Normalizer QueryNormalizer
	Allowlist  AllowlistAdmin
	RateLimit  func(http.Handler) http.Handler
	Ready      map[string]ReadinessCheck
}

// Server wires HTTP handlers to the search and SEO engines.
type Server struct {
	router          chi.Router
	deps            Deps
	pages           *Pages
	baseURL         string
	defaultPageSize int
	logger          *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:            deps,
		baseURL:         cfg.Site.BaseURL,
		defaultPageSize: cfg.Search.DefaultPageSize,
		logger:          logger,
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = 20
	}
	s.pages = NewPages(deps, s.defaultPageSize)

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit)
		}
		r.Get("/cars", s.page)
		r.Get("/cars/*", s.page)
		r.Get(seo.SearchPath, s.page)
		r.Get("/api/search", s.apiSearch)
		r.Get("/sitemap.xml", s.sitemap)
		r.Get("/robots.txt", s.robots)
	})

	r.Route("/v1/allowlist", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/", s.listAllowlist)
		r.Put("/*", s.addAllowlist)
		r.Delete("/*", s.removeAllowlist)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz runs every readiness check and answers 503 when any fails.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(s.deps.Ready))
	for name := range s.deps.Ready {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := map[string]string{}
	for _, name := range names {
		if err := s.deps.Ready[name](ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
