package service

import (
	"context"
	"time"

	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/models"
)

// PoolFeed lists the yield pools of a chain
type PoolFeed interface {
	Pools(ctx context.Context, chain string) ([]models.LiquidityPool, error)
}

// PoolWriter upserts pools by ID
type PoolWriter interface {
	UpsertMany(ctx context.Context, pools []models.LiquidityPool) (inserted int64, modified int64, err error)
}

// IngestResult summarizes one ingest run
type IngestResult struct {
	Chain    string        `json:"chain"`
	Fetched  int           `json:"fetched"`
	Inserted int64         `json:"inserted"`
	Modified int64         `json:"modified"`
	Duration time.Duration `json:"duration"`
}

// PoolIngestService copies the DeFi Llama pool feed into the pool collection
type PoolIngestService struct {
	feed  PoolFeed
	store PoolWriter
}

// NewPoolIngestService creates a pool ingest service
func NewPoolIngestService(feed PoolFeed, store PoolWriter) *PoolIngestService {
	return &PoolIngestService{feed: feed, store: store}
}

// IngestChain fetches the pools of chain and upserts them
func (s *PoolIngestService) IngestChain(ctx context.Context, chain string) (*IngestResult, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).WithField("chain", chain)

	pools, err := s.feed.Pools(ctx, chain)
	if err != nil {
		return nil, apperrors.NewProviderError("defillama", err)
	}

	inserted, modified, err := s.store.UpsertMany(ctx, pools)
	if err != nil {
		return nil, apperrors.NewDatabaseError("upsert pools", err)
	}

	result := &IngestResult{
		Chain:    chain,
		Fetched:  len(pools),
		Inserted: inserted,
		Modified: modified,
		Duration: time.Since(start),
	}
	logger.WithFields(map[string]interface{}{
		"fetched":  result.Fetched,
		"inserted": inserted,
		"modified": modified,
	}).Info("pool ingest complete")
	return result, nil
}
