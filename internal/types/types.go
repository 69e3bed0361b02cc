// Package types provides common type definitions for the DeFi health scanner.
package types

// LiquidityRisk classifies how thin a token's liquidity is relative to its market cap
type LiquidityRisk string

const (
	// LiquidityLow means liquidity is at least 1% of market cap
	LiquidityLow LiquidityRisk = "Low"
	// LiquidityMedium means liquidity is between 0.1% and 1% of market cap
	LiquidityMedium LiquidityRisk = "Medium"
	// LiquidityHigh means liquidity is below 0.1% of market cap
	LiquidityHigh LiquidityRisk = "High"
	// LiquidityNA means the ratio could not be computed
	LiquidityNA LiquidityRisk = "NA"
)

// MarketSentiment classifies the buy/sell pressure on a token
type MarketSentiment string

const (
	SentimentBullish MarketSentiment = "Bullish"
	SentimentNeutral MarketSentiment = "Neutral"
	SentimentBearish MarketSentiment = "Bearish"
	SentimentNA      MarketSentiment = "NA"
)

// IncidentSource identifies the exploit database an incident came from
type IncidentSource string

const (
	// SourceSlowMist is the SlowMist hacked archive
	SourceSlowMist IncidentSource = "SlowMist"
	// SourceRektNews is the rekt.news leaderboard
	SourceRektNews IncidentSource = "Rekt.News"
)

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainSonic is the Sonic mainnet
	ChainSonic ChainID = "sonic"
	// ChainBase is the Base network, used for report payments
	ChainBase ChainID = "base"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// TokenTransfer is a single ERC-20 transfer as reported by a block explorer.
// Value is the raw integer amount; Decimals scales it to a token balance.
type TokenTransfer struct {
	Hash            string `json:"hash"`
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    int    `json:"tokenDecimal"`
	Timestamp       int64  `json:"timestamp"`
}
