// Package main generates and stores AI security reports for catalog projects.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/defi-health-scanner/internal/adapter"
	"github.com/defi-health-scanner/internal/circuitbreaker"
	"github.com/defi-health-scanner/internal/config"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/service"
	"github.com/defi-health-scanner/internal/storage"
)

func main() {
	project := flag.String("project", "", "Catalog project name to report on")
	all := flag.Bool("all", false, "Generate a report for every catalog project")
	flag.Parse()

	if *project == "" && !*all {
		log.Fatal("one of -project or -all is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	catalog, err := config.LoadCatalog(cfg.Scoring.CatalogPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load project catalog")
	}

	var names []string
	if *all {
		for _, p := range catalog.Projects {
			names = append(names, p.Name)
		}
	} else {
		if _, ok := catalog.Lookup(*project); !ok {
			logger.WithField("project", *project).Fatal("Project is not in the catalog")
		}
		names = []string{*project}
	}

	mongoDB, err := storage.NewMongoDB(ctx, &cfg.Database.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongoDB.Close(context.Background())

	agent := adapter.NewAgentClient(cfg.Upstream.AgentURL, cfg.Upstream.AgentName, cfg.Upstream.AgentConnection,
		adapter.NewHTTPClient(adapter.ClientOptions{
			Service:        "agent",
			Timeout:        cfg.Upstream.Timeout,
			RequestsPerSec: cfg.Upstream.RequestsPerSecond,
			MaxElapsedTime: cfg.Upstream.MaxElapsedTime,
			Breaker:        circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("agent")),
		}))
	if err := agent.Load(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to load agent")
	}

	sources := service.DataSources{
		Audits:      storage.NewAuditRepository(mongoDB),
		Incidents:   storage.NewIncidentRepository(mongoDB),
		Pools:       storage.NewPoolRepository(mongoDB),
		MarketStats: agent,
	}
	reports := service.NewReportService(service.ReportServiceOptions{
		Reports:   storage.NewReportRepository(mongoDB),
		Generator: agent,
		Assessor:  service.NewAssessmentService(sources, catalog),
		Model:     cfg.Upstream.ReportModel,
	})

	failed := 0
	for _, name := range names {
		report, err := reports.GenerateReport(ctx, name)
		if err != nil {
			failed++
			logger.WithError(err).WithField("project", name).Error("Failed to generate report")
			continue
		}
		logger.WithFields(map[string]interface{}{
			"project":  name,
			"reportId": report.ID,
		}).Info("Report stored")
	}

	if failed > 0 {
		logger.Fatalf("%d of %d reports failed", failed, len(names))
	}
}
