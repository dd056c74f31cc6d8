package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Clark-Hu/workshop-market/internal/authz"
	"github.com/Clark-Hu/workshop-market/internal/config"
	"github.com/Clark-Hu/workshop-market/internal/domain"
)

// HealthChecker is a dependency checked by /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the stores and services the handlers call.
type Deps struct {
	Products       DocumentStore[domain.Product]
	Shops          DocumentStore[domain.Shop]
	ServiceRecords DocumentStore[domain.ServiceRecord]
	Tutorials      DocumentStore[domain.Tutorial]
	Vehicles       DocumentStore[domain.Vehicle]
	Reviews        ReviewService
	Health         []HealthChecker
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	deps    Deps
	logger  *zap.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(actorMiddleware([]byte(s.cfg.JWTSecret)))

		mountResource(r, s, "/products", s.deps.Products, authz.Products, productHooks)
		mountResource(r, s, "/shops", s.deps.Shops, authz.Shops, shopHooks)
		mountResource(r, s, "/service-records", s.deps.ServiceRecords, authz.ServiceRecords, serviceRecordHooks)
		mountResource(r, s, "/tutorials", s.deps.Tutorials, authz.Tutorials, tutorialHooks)
		mountResource(r, s, "/vehicles", s.deps.Vehicles, authz.Vehicles, vehicleHooks)

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", s.handleListReviews)
			r.Post("/", s.handleCreateReview)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetReview)
				r.Put("/", s.handleUpdateReview)
				r.Delete("/", s.handleDeleteReview)
			})
		})
	})
}

// Start boots the HTTP server and blocks until ctx ends or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, hc := range s.deps.Health {
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
