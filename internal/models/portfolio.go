package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/defi-health-scanner/internal/types"
)

// HeldToken is a net wallet balance of one token contract
type HeldToken struct {
	Name            string          `json:"name"`
	Symbol          string          `json:"symbol"`
	ContractAddress string          `json:"contract_address"`
	Balance         decimal.Decimal `json:"balance"`
}

// ValuedToken is a held token priced, scored and weighted within its portfolio
type ValuedToken struct {
	HeldToken
	PriceUSD            types.Optional[float64] `json:"price_usd"`
	ValueUSD            float64                 `json:"value_usd"`
	HoldingPercent      float64                 `json:"holding_percent"`
	SecurityScore       float64                 `json:"audit_security_score"`
	ImpermanentLossRisk types.Optional[float64] `json:"impermanent_loss_risk"`
	RiskValue           float64                 `json:"risk_value"`
}

// PortfolioSnapshot is the valued portfolio of a wallet
type PortfolioSnapshot struct {
	WalletAddress         string        `json:"wallet_address,omitempty"`
	Tokens                []ValuedToken `json:"tokens"`
	TotalValueUSD         float64       `json:"total_portfolio_value_usd"`
	WeightedRisk          float64       `json:"weighted_risk"`
	WeightedSecurityScore float64       `json:"weighted_security_score"`
}

// SwapInstruction moves the full balance of one token into another
type SwapInstruction struct {
	FromToken    string          `json:"from_token"`
	ToToken      string          `json:"to_token"`
	FromContract string          `json:"from_contract"`
	ToContract   string          `json:"to_contract"`
	Amount       decimal.Decimal `json:"amount"`
}

// AgentFlow is a saved rebalancing target for a wallet. Flows are append-only.
type AgentFlow struct {
	ID                  string    `json:"id" db:"id"`
	WalletAddress       string    `json:"walletAddress" db:"wallet_address"`
	TargetSecurityScore float64   `json:"targetSecurityScore" db:"target_security_score"`
	TopN                int       `json:"topN" db:"top_n"`
	CreatedAt           time.Time `json:"createdAt" db:"created_at"`
}

// SwapStatus is the result of one submitted swap
type SwapStatus string

const (
	SwapStatusSucceeded SwapStatus = "succeeded"
	SwapStatusFailed    SwapStatus = "failed"
)

// ExecutedSwap is one entry of the append-only swap audit log
type ExecutedSwap struct {
	ID            string          `json:"id" ch:"id"`
	RunID         string          `json:"runId" ch:"run_id"`
	FlowID        string          `json:"flowId,omitempty" ch:"flow_id"`
	WalletAddress string          `json:"walletAddress" ch:"wallet_address"`
	FromContract  string          `json:"fromContract" ch:"from_contract"`
	ToContract    string          `json:"toContract" ch:"to_contract"`
	FromToken     string          `json:"fromToken" ch:"from_token"`
	ToToken       string          `json:"toToken" ch:"to_token"`
	Amount        decimal.Decimal `json:"amount" ch:"amount"`
	Status        SwapStatus      `json:"status" ch:"status"`
	Error         string          `json:"error,omitempty" ch:"error"`
	ExecutedAt    time.Time       `json:"executedAt" ch:"executed_at"`
}
