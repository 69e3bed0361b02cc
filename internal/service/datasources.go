// Package service orchestrates scoring, valuation and rebalancing over the
// configured data sources and stores.
package service

import (
	"context"
	"fmt"

	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/types"
)

// AuditSource returns the audit records of a project
type AuditSource interface {
	FindByProject(ctx context.Context, project string) ([]models.AuditRecord, error)
}

// IncidentSource returns the reported hacks of a project
type IncidentSource interface {
	FindByProject(ctx context.Context, project string) ([]models.IncidentRecord, error)
}

// PoolSource returns the liquidity pools whose symbol mentions a token
type PoolSource interface {
	FindBySymbol(ctx context.Context, symbol string) ([]models.LiquidityPool, error)
}

// MarketStatsSource returns the raw market snapshot of a token
type MarketStatsSource interface {
	TokenStats(ctx context.Context, symbol string) (models.RawTokenStats, error)
}

// PriceSource returns the USD price of a token
type PriceSource interface {
	PriceUSD(ctx context.Context, symbol string) (types.Optional[float64], error)
}

// HoldingsSource returns the token transfer history of a wallet
type HoldingsSource interface {
	TokenTransfers(ctx context.Context, address string) ([]types.TokenTransfer, error)
}

// DataSources is the read side every assessment runs against. It is built once at
// startup and passed to the services that need it.
type DataSources struct {
	Audits      AuditSource
	Incidents   IncidentSource
	Pools       PoolSource
	MarketStats MarketStatsSource
	Prices      PriceSource
	Holdings    HoldingsSource
}

// Validate checks that every source is set
func (d DataSources) Validate() error {
	missing := map[string]bool{
		"audits":       d.Audits == nil,
		"incidents":    d.Incidents == nil,
		"pools":        d.Pools == nil,
		"market stats": d.MarketStats == nil,
		"prices":       d.Prices == nil,
		"holdings":     d.Holdings == nil,
	}
	for name, isMissing := range missing {
		if isMissing {
			return fmt.Errorf("data source %q is not configured", name)
		}
	}
	return nil
}
