package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/clusterupgrade/pkg/log"
	"github.com/cuemby/clusterupgrade/pkg/manager"
	"github.com/cuemby/clusterupgrade/pkg/metrics"
	"github.com/cuemby/clusterupgrade/pkg/upgrade"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	apiPrefix = "/api/v1"

	defaultMaxBodyBytes = 10 * 1024 * 1024
)

// Config holds the dependencies of the API server
type Config struct {
	Objects *manager.Manager
	Helper  *upgrade.Helper

	// ReadOnly rejects every request that is not a GET
	ReadOnly bool

	// MaxBodyBytes caps request bodies, defaults to 10MB
	MaxBodyBytes int64
}

// Server serves the upgrade REST API
type Server struct {
	objects      *manager.Manager
	helper       *upgrade.Helper
	router       *mux.Router
	mu           sync.Mutex
	server       *http.Server
	readOnly     bool
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(cfg Config) *Server {
	s := &Server{
		objects:      cfg.Objects,
		helper:       cfg.Helper,
		router:       mux.NewRouter(),
		readOnly:     cfg.ReadOnly,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       log.WithComponent("api"),
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	s.registerRoutes()
	return s
}

// ServeHTTP limits the request body and dispatches to the router
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.healthHandler()).Methods(http.MethodGet).Name("health")
	s.router.HandleFunc("/ready", s.readyHandler()).Methods(http.MethodGet).Name("ready")
	s.router.HandleFunc("/livez", metrics.LivenessHandler()).Methods(http.MethodGet).Name("livez")
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet).Name("metrics")

	upgradePath := "/clusters/{cluster_id}/upgrade"
	s.route(http.MethodPost, upgradePath+"/clone", "clone", s.cloneHandler())
	s.route(http.MethodPost, upgradePath+"/assign", "assign", s.assignHandler())
	s.route(http.MethodPost, upgradePath+"/vips", "copy_vips", s.copyVIPsHandler())
	s.route(http.MethodPost, upgradePath+"/clone_release/{release_id}", "clone_release", s.cloneReleaseHandler())
	s.route(http.MethodGet, upgradePath+"/info", "info", s.deploymentInfoHandler())

	s.route(http.MethodPost, "/releases", "create_release", s.createReleaseHandler())
	s.route(http.MethodGet, "/releases", "list_releases", s.listReleasesHandler())
	s.route(http.MethodGet, "/releases/{release_id}", "get_release", s.getReleaseHandler())

	s.route(http.MethodPost, "/clusters", "create_cluster", s.createClusterHandler())
	s.route(http.MethodGet, "/clusters", "list_clusters", s.listClustersHandler())
	s.route(http.MethodGet, "/clusters/{cluster_id}", "get_cluster", s.getClusterHandler())
	s.route(http.MethodDelete, "/clusters/{cluster_id}", "delete_cluster", s.deleteClusterHandler())
	s.route(http.MethodPost, "/clusters/{cluster_id}/node_groups", "create_node_group", s.createNodeGroupHandler())
	s.route(http.MethodGet, "/clusters/{cluster_id}/node_groups", "list_node_groups", s.listNodeGroupsHandler())
	s.route(http.MethodGet, "/clusters/{cluster_id}/network_configuration", "network_configuration", s.networkConfigHandler())

	s.route(http.MethodPost, "/nodes", "create_node", s.createNodeHandler())
	s.route(http.MethodGet, "/nodes", "list_nodes", s.listNodesHandler())
	s.route(http.MethodGet, "/nodes/{node_id}", "get_node", s.getNodeHandler())

	s.route(http.MethodGet, "/tasks/{task_id}", "get_task", s.getTaskHandler())
	s.route(http.MethodGet, "/events", "list_events", s.listEventsHandler())
}

// route registers an /api/v1 endpoint with its middleware. API routes stay on
// the root router: a mux subrouter answers a method mismatch with 404.
func (s *Server) route(method, path, name string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.readOnly {
		handler = readOnlyMiddleware(handler)
	}
	handler = s.loggingMiddleware(s.metricsMiddleware(handler))

	s.router.Handle(apiPrefix+path, handler).Methods(method).Name(name)
}

// Start listens on addr and serves until Stop is called
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	metrics.RegisterComponent(metrics.ComponentAPI, true, "")
	s.logger.Info().Str("addr", addr).Msg("API server listening")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.RegisterComponent(metrics.ComponentAPI, false, err.Error())
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	metrics.RegisterComponent(metrics.ComponentAPI, false, "shutting down")
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
