package scoring

import (
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/types"
)

// Liquidity ratio thresholds (liquidity / market cap)
const (
	HighRiskBelow   = 0.001
	MediumRiskBelow = 0.01
)

// DefaultPredictedProbability is assumed for pools without an APY prediction
const DefaultPredictedProbability = 50.0

// NormalizeMarketStats derives liquidity risk and sentiment from a raw token snapshot
func NormalizeMarketStats(symbol string, raw models.RawTokenStats) models.TokenMarketStats {
	stats := models.UnavailableMarketStats(symbol)
	if raw.Token != "" {
		stats.Token = raw.Token
	}
	stats.PriceUSD = optionalOf(raw.PriceUSD)
	stats.TotalVolume24h = optionalOf(raw.TotalVolume24h)

	if raw.TotalLiquidityUSD != nil && raw.TotalMarketCap != nil && *raw.TotalMarketCap > 0 {
		ratio := *raw.TotalLiquidityUSD / *raw.TotalMarketCap
		stats.LiquidityRatio = types.Known(round(ratio, 2))
		stats.LiquidityRisk = ClassifyLiquidity(ratio)
	}

	if raw.TotalBuys != nil && raw.TotalSells != nil && *raw.TotalSells > 0 {
		ratio := *raw.TotalBuys / *raw.TotalSells
		stats.BuySellRatio = types.Known(round(ratio, 2))
		stats.MarketSentiment = ClassifySentiment(ratio)
	}

	return stats
}

// ClassifyLiquidity maps an unrounded liquidity/market-cap ratio onto a risk level
func ClassifyLiquidity(ratio float64) types.LiquidityRisk {
	switch {
	case ratio < HighRiskBelow:
		return types.LiquidityHigh
	case ratio < MediumRiskBelow:
		return types.LiquidityMedium
	default:
		return types.LiquidityLow
	}
}

// ClassifySentiment maps a buy/sell ratio onto a sentiment
func ClassifySentiment(buySell float64) types.MarketSentiment {
	if buySell < 1 {
		return types.SentimentBearish
	}
	return types.SentimentBullish
}

// AggregatePools averages the pools matching symbol. No pools means Unavailable.
func AggregatePools(symbol string, pools []models.LiquidityPool) types.Optional[models.TvlMetrics] {
	if len(pools) == 0 {
		return types.Unavailable[models.TvlMetrics]()
	}

	m := models.TvlMetrics{Symbol: symbol, NumPools: len(pools)}
	var apy, sigma, ilRisk, probability float64
	for _, p := range pools {
		m.TotalTvl += p.TvlUsd
		apy += deref(p.ApyBase, 0)
		sigma += deref(p.Sigma, 0)
		if p.IlRisk == "yes" {
			ilRisk++
		}
		m.TotalVolume1d += deref(p.VolumeUsd1d, 0)
		m.TotalVolume7d += deref(p.VolumeUsd7d, 0)

		prob := DefaultPredictedProbability
		if p.Predictions != nil {
			prob = deref(p.Predictions.PredictedProbability, DefaultPredictedProbability)
		}
		probability += prob
	}

	n := float64(len(pools))
	m.AvgApy = round(apy/n, 2)
	m.AvgSigma = round(sigma/n, 4)
	m.ImpermanentLossRisk = round(ilRisk/n, 2)
	m.PredictedProbability = round(probability/n, 2)
	return types.Known(m)
}

func optionalOf(v *float64) types.Optional[float64] {
	if v == nil {
		return types.Unavailable[float64]()
	}
	return types.Known(*v)
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
