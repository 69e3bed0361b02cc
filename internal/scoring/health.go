package scoring

import (
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/types"
)

// Health score weights
const (
	SecurityWeight   = 0.3
	SentimentWeight  = 0.3
	LiquidityWeight  = 0.2
	NoIncidentWeight = 0.2
)

// SentimentScore is 100 for Bullish, 50 for Neutral and 0 for anything else, NA included
func SentimentScore(s types.MarketSentiment) float64 {
	switch s {
	case types.SentimentBullish:
		return 100
	case types.SentimentNeutral:
		return 50
	default:
		return 0
	}
}

// LiquidityScore is 100 for Low risk, 50 for Medium and 0 for anything else, NA included
func LiquidityScore(r types.LiquidityRisk) float64 {
	switch r {
	case types.LiquidityLow:
		return 100
	case types.LiquidityMedium:
		return 50
	default:
		return 0
	}
}

// HealthScore blends audit coverage, sentiment, liquidity and incident history.
// The result is not clamped.
func HealthScore(security models.SecurityScore, incidents models.IncidentReport, stats models.TokenMarketStats) models.HealthBreakdown {
	bonus := 0.0
	if !incidents.SlowMist.HasIncidents() && !incidents.RektNews.HasIncidents() {
		bonus = 100
	}

	b := models.HealthBreakdown{
		SecurityTerm:   SecurityWeight * security.TotalScore,
		SentimentTerm:  SentimentWeight * SentimentScore(stats.MarketSentiment),
		LiquidityTerm:  LiquidityWeight * LiquidityScore(stats.LiquidityRisk),
		NoIncidentTerm: NoIncidentWeight * bonus,
	}
	b.HealthScore = b.SecurityTerm + b.SentimentTerm + b.LiquidityTerm + b.NoIncidentTerm
	return b
}
