package models

import "github.com/defi-health-scanner/internal/types"

// SecurityScore is the audit-coverage score of a project. It is derived, never stored.
type SecurityScore struct {
	ProjectName string   `json:"project_name"`
	AuditedBy   []string `json:"audited_by"`
	TotalAudits int      `json:"total_audits"`
	TotalScore  float64  `json:"total_score"`
}

// TokenMarketStats is the normalized market view of a token
type TokenMarketStats struct {
	Token           string                  `json:"token"`
	PriceUSD        types.Optional[float64] `json:"price_usd"`
	TotalVolume24h  types.Optional[float64] `json:"total_volume_24h"`
	LiquidityRatio  types.Optional[float64] `json:"liquidity_ratio"`
	LiquidityRisk   types.LiquidityRisk     `json:"liquidity_risk"`
	BuySellRatio    types.Optional[float64] `json:"buy_sell_ratio"`
	MarketSentiment types.MarketSentiment   `json:"market_sentiment"`
}

// UnavailableMarketStats is the all-NA stats record used when the upstream has no data
func UnavailableMarketStats(token string) TokenMarketStats {
	return TokenMarketStats{
		Token:           token,
		LiquidityRisk:   types.LiquidityNA,
		MarketSentiment: types.SentimentNA,
	}
}

// TvlMetrics aggregates the liquidity pools matching a token symbol.
// ImpermanentLossRisk is the fraction (0-1) of pools flagged with IL risk.
type TvlMetrics struct {
	Symbol               string  `json:"symbol"`
	TotalTvl             float64 `json:"totalTvl"`
	AvgApy               float64 `json:"avgApy"`
	AvgSigma             float64 `json:"avgSigma"`
	ImpermanentLossRisk  float64 `json:"impermanentLossRisk"`
	PredictedProbability float64 `json:"predictedProbability"`
	TotalVolume1d        float64 `json:"totalVolume1d"`
	TotalVolume7d        float64 `json:"totalVolume7d"`
	NumPools             int     `json:"numPools"`
}

// HealthBreakdown is the composite health score and the terms it was built from
type HealthBreakdown struct {
	SecurityTerm   float64 `json:"securityTerm"`
	SentimentTerm  float64 `json:"sentimentTerm"`
	LiquidityTerm  float64 `json:"liquidityTerm"`
	NoIncidentTerm float64 `json:"noIncidentTerm"`
	HealthScore    float64 `json:"healthScore"`
}

// ProjectAssessment is the full dashboard record for one project
type ProjectAssessment struct {
	ProjectName   string                     `json:"projectName"`
	Symbol        string                     `json:"symbol"`
	Security      SecurityScore              `json:"auditSecurityScore"`
	Incidents     IncidentReport             `json:"pastHacks"`
	HacksReported bool                       `json:"hacksReported"`
	MarketStats   TokenMarketStats           `json:"tokenStats"`
	Tvl           types.Optional[TvlMetrics] `json:"tvlMetrics"`
	Health        HealthBreakdown            `json:"health"`
}
