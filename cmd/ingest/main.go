// Package main runs a one-shot DeFi Llama pool ingest for a chain.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/defi-health-scanner/internal/adapter"
	"github.com/defi-health-scanner/internal/config"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/service"
	"github.com/defi-health-scanner/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	chain := flag.String("chain", cfg.Scoring.Chain, "DeFi Llama chain name")
	flag.Parse()

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoDB, err := storage.NewMongoDB(ctx, &cfg.Database.Mongo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer mongoDB.Close(context.Background())

	feed := adapter.NewDefiLlamaClient(cfg.Upstream.DefiLlamaURL, adapter.NewHTTPClient(adapter.ClientOptions{
		Service:        "defillama",
		Timeout:        cfg.Upstream.Timeout,
		RequestsPerSec: cfg.Upstream.RequestsPerSecond,
		MaxElapsedTime: cfg.Upstream.MaxElapsedTime,
	}))
	ingest := service.NewPoolIngestService(feed, storage.NewPoolRepository(mongoDB))

	result, err := ingest.IngestChain(logging.WithLogger(ctx, logger), *chain)
	if err != nil {
		logger.WithError(err).Fatal("Pool ingest failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.WithError(err).Fatal("Failed to write result")
	}
}
