package stub

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/brakes/brakes-estimator/pkg/config"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/httputil"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Version is reported by /health
const Version = "1.0.0"

// Server is an in-memory stand-in for the estimation service
type Server struct {
	cfg       config.ServerConfig
	store     *Store
	catalogue *Catalogue
	estimator *Estimator
	metrics   *metrics.HTTPServerMetrics
	logger    *logger.Logger
	now       func() time.Time

	mu   sync.RWMutex
	down map[string]string
}

type Option func(*Server)

func WithCatalogue(c *Catalogue) Option {
	return func(s *Server) { s.catalogue = c }
}

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock fixes the time source for created_at and export stamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer wires the store, catalogue and estimator
func NewServer(cfg config.ServerConfig, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:    cfg,
		logger: log.WithComponent("stub"),
		now:    time.Now,
		down:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalogue == nil {
		s.catalogue = DefaultCatalogue()
	}
	s.store = NewStore(cfg.JobTTL)
	s.estimator = NewEstimator(s.catalogue)
	s.estimator.now = s.now
	return s
}

// Store exposes the backing store, mainly for seeding in tests
func (s *Server) Store() *Store { return s.store }

// Estimator exposes the estimate builder
func (s *Server) Estimator() *Estimator { return s.estimator }

// Close stops background work
func (s *Server) Close() { s.store.Close() }

// SetDependencyDown marks a dependency unhealthy with reason
func (s *Server) SetDependencyDown(name, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down[name] = reason
}

// SetDependencyUp clears a previous SetDependencyDown
func (s *Server) SetDependencyUp(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.down, name)
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(s.logger))
	r.Use(httputil.Recoverer(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, r, errors.New("NOT_FOUND", "Not Found", http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, r, errors.New("METHOD_NOT_ALLOWED", "Method Not Allowed", http.StatusMethodNotAllowed))
	})

	r.Get("/health", s.Health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.Upload)
		r.Get("/upload/status/{id}", s.UploadStatus)

		r.Get("/estimates", s.ListEstimates)
		r.Route("/estimate/{id}", func(r chi.Router) {
			r.Get("/", s.GetEstimate)
			r.Delete("/", s.DeleteEstimate)
			r.Get("/summary", s.GetSummary)
			r.Get("/export", s.Export)
		})

		r.Route("/pricing", func(r chi.Router) {
			r.Get("/", s.ListPrices)
			r.Get("/search", s.SearchPrices)
			r.Get("/categories", s.PriceCategories)
			r.Get("/statistics", s.PriceStatistics)
			r.Get("/category/{category}", s.PricesByCategory)
			r.Get("/{name}", s.GetPrice)
		})
	})

	return r
}

// Health reports dependency status; anything but healthy answers 503
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]map[string]interface{}{
		"database":        {"status": "healthy", "message": "in-memory store"},
		"irc_clauses":     {"status": "healthy", "count": len(rules)},
		"material_prices": {"status": "healthy", "count": s.catalogue.Len()},
		"extraction":      {"status": "healthy", "model": "keyword-v1"},
	}

	s.mu.RLock()
	for name, reason := range s.down {
		services[name] = map[string]interface{}{"status": "unhealthy", "error": reason}
	}
	s.mu.RUnlock()

	var unhealthy []string
	for name, svc := range services {
		if svc["status"] != "healthy" {
			unhealthy = append(unhealthy, name)
		}
	}
	sort.Strings(unhealthy)

	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": float64(s.now().UnixNano()) / 1e9,
		"version":   Version,
		"services":  services,
	}
	code := http.StatusOK
	if len(unhealthy) > 0 {
		body["status"] = "unhealthy"
		body["unhealthy_services"] = unhealthy
		code = http.StatusServiceUnavailable
	}
	httputil.JSON(w, code, body)
}
