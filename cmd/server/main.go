// Package main provides the API server entry point for the DeFi health scanner.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defi-health-scanner/internal/adapter"
	"github.com/defi-health-scanner/internal/api"
	"github.com/defi-health-scanner/internal/circuitbreaker"
	"github.com/defi-health-scanner/internal/config"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/portfolio"
	"github.com/defi-health-scanner/internal/ratelimit"
	"github.com/defi-health-scanner/internal/service"
	"github.com/defi-health-scanner/internal/storage"
	"github.com/defi-health-scanner/internal/types"
	"github.com/defi-health-scanner/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx := context.Background()

	logger.Info("Connecting to databases...")

	mongoDB, err := storage.NewMongoDB(ctx, &cfg.Database.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongoDB.Close(context.Background())

	postgres, err := storage.NewPostgresDB(ctx, &cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(ctx, &cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Upstream clients share one breaker per service
	breakers := circuitbreaker.NewManager()
	newClient := func(service string, budget adapter.CreditWaiter) *adapter.HTTPClient {
		return adapter.NewHTTPClient(adapter.ClientOptions{
			Service:        service,
			Timeout:        cfg.Upstream.Timeout,
			RequestsPerSec: cfg.Upstream.RequestsPerSecond,
			MaxElapsedTime: cfg.Upstream.MaxElapsedTime,
			Breaker:        breakers.GetOrCreate(service),
			Budget:         budget,
		})
	}

	cmcBudget, err := ratelimit.NewCreditBudget(&ratelimit.CreditBudgetConfig{
		Redis:           redis.Client(),
		Name:            "coinmarketcap",
		TotalCredits:    cfg.Upstream.CMCCredits,
		ReservedCredits: cfg.Upstream.CMCReserved,
	})
	if err != nil {
		logger.WithError(err).Fatal("Invalid CoinMarketCap credit budget")
	}

	agent := adapter.NewAgentClient(cfg.Upstream.AgentURL, cfg.Upstream.AgentName, cfg.Upstream.AgentConnection, newClient("agent", nil))
	if err := agent.Load(ctx); err != nil {
		logger.WithError(err).Warn("Failed to load agent, market stats and swaps will fail until it is loaded")
	}

	poolRepo := storage.NewPoolRepository(mongoDB)
	sources := service.DataSources{
		Audits:      storage.NewAuditRepository(mongoDB),
		Incidents:   storage.NewIncidentRepository(mongoDB),
		Pools:       poolRepo,
		MarketStats: agent,
		Prices: adapter.NewCoinMarketCapClient(cfg.Upstream.CMCURL, cfg.Upstream.CMCAPIKey,
			newClient("coinmarketcap", ratelimit.NewWaiter(cmcBudget, ratelimit.PriorityInteractive, 1, 0))),
		Holdings: adapter.NewExplorerClient(cfg.Upstream.ExplorerURL, cfg.Upstream.ExplorerAPIKey, newClient("explorer", nil)),
	}
	if err := sources.Validate(); err != nil {
		logger.WithError(err).Fatal("Incomplete data sources")
	}

	catalog, err := config.LoadCatalog(cfg.Scoring.CatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load project catalog")
	}

	verifier, paymentRPC, err := adapter.DialPaymentVerifier(ctx, cfg.Payment.RPCURL,
		cfg.Payment.TokenAddress, cfg.Payment.Treasury, cfg.Payment.ReportCost, cfg.Payment.TokenDecimals)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up payment verification")
	}
	defer paymentRPC.Close()

	logger.Info("Initializing services...")

	chain := types.ChainID(cfg.Scoring.Chain)
	sessions := storage.NewSessionStore(redis, cfg.Session.TTL)

	assessments := service.NewAssessmentService(sources, catalog)
	portfolios := service.NewPortfolioService(
		sources,
		portfolio.NewHoldingsPolicy(cfg.Scoring.MinBalance, cfg.Scoring.SpamTokens),
		chain,
		agent,
		storage.NewSwapLogRepository(clickhouse),
	)
	flows := service.NewAgentFlowService(storage.NewAgentFlowRepository(postgres))
	users := service.NewUserService(storage.NewUserRepository(postgres), sessions)
	reports := service.NewReportService(service.ReportServiceOptions{
		Reports:        storage.NewReportRepository(mongoDB),
		Access:         storage.NewAccessGrantStore(redis),
		Payments:       verifier,
		Generator:      agent,
		Assessor:       assessments,
		Model:          cfg.Upstream.ReportModel,
		AccessDuration: cfg.Payment.AccessDuration,
	})

	ingest := service.NewPoolIngestService(
		adapter.NewDefiLlamaClient(cfg.Upstream.DefiLlamaURL, newClient("defillama", nil)),
		poolRepo,
	)
	refresher, err := worker.NewPoolRefresher(&worker.PoolRefresherConfig{
		Ingester: ingest,
		Chain:    string(chain),
		Interval: cfg.Scoring.PoolRefreshEvery,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create pool refresher")
	}

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RequestsPerSec:  cfg.Server.RequestsPerSec,
		AllowedOrigin:   cfg.Server.AllowedOrigin,
		CookieName:      cfg.Session.CookieName,
		CookieSecure:    cfg.Session.Secure,
	}

	server := api.NewServer(serverConfig, api.Services{
		Assessments: assessments,
		Portfolios:  portfolios,
		Flows:       flows,
		Users:       users,
		Reports:     reports,
		Sessions:    sessions,
		Stores: map[string]api.Pinger{
			"mongo":      mongoDB,
			"postgres":   postgres,
			"clickhouse": clickhouse,
			"redis":      redis,
		},
	})

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	if err := refresher.Start(workerCtx); err != nil {
		logger.WithError(err).Fatal("Failed to start pool refresher")
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host":  cfg.Server.Host,
		"port":  cfg.Server.Port,
		"chain": chain,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if err := refresher.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Pool refresher did not stop cleanly")
	}

	logger.Info("Server exited")
}
