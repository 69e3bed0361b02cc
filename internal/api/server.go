// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/metrics"
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/portfolio"
	"github.com/defi-health-scanner/internal/service"
	"github.com/defi-health-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// AssessmentServiceInterface defines the interface for project assessments
type AssessmentServiceInterface interface {
	AssessProject(ctx context.Context, name, symbol string) (*models.ProjectAssessment, error)
	Dashboard(ctx context.Context) ([]*models.ProjectAssessment, error)
}

// PortfolioServiceInterface defines the interface for wallet valuation and rebalancing
type PortfolioServiceInterface interface {
	WalletPortfolio(ctx context.Context, chain types.ChainID, wallet string) (*models.PortfolioSnapshot, error)
	PreviewRebalance(ctx context.Context, wallet string, target float64, topN int) (*portfolio.Plan, error)
	Rebalance(ctx context.Context, input service.RebalanceInput) (*portfolio.Result, error)
	ListSwaps(ctx context.Context, wallet string, limit int) ([]*models.ExecutedSwap, error)
}

// AgentFlowServiceInterface defines the interface for saved rebalancing flows
type AgentFlowServiceInterface interface {
	CreateFlow(ctx context.Context, wallet string, target float64, topN int) (*models.AgentFlow, error)
	ListFlows(ctx context.Context, wallet string) ([]*models.AgentFlow, error)
	GetFlow(ctx context.Context, wallet, id string) (*models.AgentFlow, error)
}

// UserServiceInterface defines the interface for wallet sessions
type UserServiceInterface interface {
	ConnectWallet(ctx context.Context, wallet string) (*models.User, *models.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// ReportServiceInterface defines the interface for paid AI reports
type ReportServiceInterface interface {
	GetReport(ctx context.Context, wallet, project string) (*models.AIReport, error)
	UnlockReports(ctx context.Context, wallet, txHash string) (*models.AccessGrant, error)
}

// SessionResolver looks up an open session by ID
type SessionResolver interface {
	Get(ctx context.Context, id string) (*models.Session, error)
}

// Pinger is a backing store the health endpoint checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles the handlers' dependencies
type Services struct {
	Assessments AssessmentServiceInterface
	Portfolios  PortfolioServiceInterface
	Flows       AgentFlowServiceInterface
	Users       UserServiceInterface
	Reports     ReportServiceInterface
	Sessions    SessionResolver
	Stores      map[string]Pinger
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   Services
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int // Per client
	AllowedOrigin   string
	CookieName      string
	CookieSecure    bool
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services) *Server {
	if config.CookieName == "" {
		config.CookieName = "session_id"
	}
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
		config:   config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(metrics.Middleware)
	s.router.Use(CORSMiddleware(s.config.AllowedOrigin))
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleConnectWallet).Methods("POST")

	// Everything below needs a connected wallet
	authed := api.NewRoute().Subrouter()
	authed.Use(SessionMiddleware(s.services.Sessions, s.config.CookieName))

	authed.HandleFunc("/session", s.handleLogout).Methods("DELETE")

	authed.HandleFunc("/dashboard", s.handleDashboard).Methods("GET")
	authed.HandleFunc("/projects/{name}", s.handleGetProject).Methods("GET")

	authed.HandleFunc("/wallet/tokens", s.handleWalletTokens).Methods("GET")
	authed.HandleFunc("/swaps", s.handleListSwaps).Methods("GET")

	authed.HandleFunc("/reports/unlock", s.handleUnlockReports).Methods("POST")
	authed.HandleFunc("/reports/{project}", s.handleGetReport).Methods("GET")

	authed.HandleFunc("/agent-flows", s.handleCreateFlow).Methods("POST")
	authed.HandleFunc("/agent-flows", s.handleListFlows).Methods("GET")
	authed.HandleFunc("/agent-flows/{id}/preview", s.handlePreviewFlow).Methods("POST")
	authed.HandleFunc("/agent-flows/{id}/execute", s.handleExecuteFlow).Methods("POST")
}

// healthCheckTimeout bounds each store ping
const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth pings every store. Any failure reports the service as degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Service: "defi-health-scanner"}
	status := http.StatusOK

	for name, store := range s.services.Stores {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(s.services.Stores))
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := store.Ping(ctx)
		cancel()
		if err != nil {
			logging.FromContext(r.Context()).WithError(err).WithField("store", name).Warn("health check failed")
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	respondJSON(w, status, resp)
}

// Handler returns the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
