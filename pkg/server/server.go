package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mnohosten/laura-flow/pkg/auth"
	"github.com/mnohosten/laura-flow/pkg/feed"
	gql "github.com/mnohosten/laura-flow/pkg/graphql"
	"github.com/mnohosten/laura-flow/pkg/metrics"
	"github.com/mnohosten/laura-flow/pkg/server/handlers"
)

// Server exposes registered feeds over HTTP and WebSocket: snapshot reads,
// document writes, and live change-set watches
type Server struct {
	config           *Config
	registry         *feed.Registry
	router           *chi.Mux
	httpSrv          *http.Server
	startTime        time.Time
	metricsCollector *metrics.MetricsCollector
	promExporter     *metrics.PrometheusExporter
	watchManager     *handlers.WatchManager
	authManager      *auth.AuthManager
}

// New creates a new feed server over the registry
func New(config *Config, registry *feed.Registry) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if registry == nil {
		return nil, fmt.Errorf("feed registry is required")
	}

	// Validate TLS configuration
	if config.EnableTLS {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.TLSCertFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS certificate file not found: %s", config.TLSCertFile)
		}
		if _, err := os.Stat(config.TLSKeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS key file not found: %s", config.TLSKeyFile)
		}
	}

	metricsCollector := metrics.NewMetricsCollector()

	srv := &Server{
		config:           config,
		registry:         registry,
		router:           chi.NewRouter(),
		startTime:        time.Now(),
		metricsCollector: metricsCollector,
		promExporter:     metrics.NewPrometheusExporter(metricsCollector),
		watchManager:     handlers.NewWatchManager(registry, metricsCollector),
	}

	// Bootstrap authentication
	if config.EnableAuth {
		if config.AdminPassword == "" {
			return nil, fmt.Errorf("auth enabled but no admin password specified")
		}
		srv.authManager = auth.NewAuthManager()
		if err := srv.authManager.CreateUser(config.AdminUser, config.AdminPassword, auth.RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to create admin user: %w", err)
		}
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	if config.EnableGraphQL {
		if err := srv.setupGraphQLRoutes(); err != nil {
			return nil, fmt.Errorf("failed to setup GraphQL routes: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv, nil
}

// setupMiddleware configures the HTTP middleware stack
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	h := handlers.New(s.registry, s.metricsCollector)

	// Health and metrics endpoints
	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/_metrics", s.handlePrometheusMetrics)

	// Auth endpoints
	if s.authManager != nil {
		s.authManager.RegisterRoutes(s.router)
	}

	// Feed routes
	s.router.Group(func(r chi.Router) {
		if s.authManager != nil {
			r.Use(s.authManager.Middleware(auth.PermissionWatch))
		}
		r.Get("/feeds", h.ListFeeds)
		r.Route("/feeds/{feed}", func(r chi.Router) {
			r.Get("/_count", h.GetCount)
			r.Get("/_items", h.GetItems)
			r.Get("/_items/{key}", h.GetItem)
		})

		// Live change-set watch over WebSocket
		r.Get("/watch/{feed}", s.watchManager.HandleWatch)
	})

	// Write routes
	s.router.Group(func(r chi.Router) {
		if s.authManager != nil {
			r.Use(s.authManager.Middleware(auth.PermissionPublish))
		}
		r.Put("/feeds/{feed}/_items/{key}", h.PutItem)
		r.Delete("/feeds/{feed}/_items/{key}", h.DeleteItem)
	})
}

// setupGraphQLRoutes configures GraphQL routes
func (s *Server) setupGraphQLRoutes() error {
	graphqlHandler, err := gql.NewHandler(s.registry)
	if err != nil {
		return fmt.Errorf("failed to create GraphQL handler: %w", err)
	}

	s.router.Post("/graphql", graphqlHandler.ServeHTTP)
	s.router.Get("/graphiql", gql.GraphiQLHandler())
	return nil
}

// handleHealth reports liveness and basic state
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"feeds":          len(s.registry.Names()),
		"watches":        s.watchManager.ActiveConnections(),
	})
}

// handlePrometheusMetrics handles the Prometheus metrics endpoint
func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("Error writing metrics: %v", err), http.StatusInternalServerError)
	}
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestSizeLimitMiddleware limits request body size
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// MetricsCollector returns the metrics collector
func (s *Server) MetricsCollector() *metrics.MetricsCollector {
	return s.metricsCollector
}

// AuthManager returns the auth manager, or nil when auth is disabled
func (s *Server) AuthManager() *auth.AuthManager {
	return s.authManager
}

// Start starts the HTTP server and blocks until an error or a shutdown
// signal arrives
func (s *Server) Start() error {
	protocol := "http"
	wsProtocol := "ws"
	if s.config.EnableTLS {
		protocol = "https"
		wsProtocol = "wss"
	}
	fmt.Printf("laura-flow feed server starting on %s://%s:%d\n", protocol, s.config.Host, s.config.Port)
	fmt.Printf("watch endpoint: %s://%s:%d/watch/{feed}\n", wsProtocol, s.config.Host, s.config.Port)
	fmt.Printf("feeds: %v\n", s.registry.Names())

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpSrv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("received signal: %v\n", sig)
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		fmt.Printf("server shutdown error: %v\n", err)
	}

	// Close all active watch connections
	s.watchManager.Close()
	return nil
}
