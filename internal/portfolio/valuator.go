package portfolio

import (
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/types"
)

// TokenAssessment is what the valuator needs to know about one held token
type TokenAssessment struct {
	PriceUSD            types.Optional[float64]
	SecurityScore       float64
	ImpermanentLossRisk types.Optional[float64] // fraction 0-1
}

// RiskValue is the per-token risk: missing audit coverage plus impermanent loss exposure,
// both on a 0-100 scale. Unknown IL risk counts as 0.
func RiskValue(securityScore float64, ilRisk types.Optional[float64]) float64 {
	return (100 - securityScore) + 100*ilRisk.OrElse(0)
}

// Valuate prices and weights the held tokens. Assessments are keyed by contract address;
// a token without one is valued at 0 with a security score of 0.
// The input slice is never modified.
func Valuate(wallet string, held []models.HeldToken, assessments map[string]TokenAssessment) models.PortfolioSnapshot {
	snapshot := models.PortfolioSnapshot{
		WalletAddress: wallet,
		Tokens:        make([]models.ValuedToken, len(held)),
	}

	for i, h := range held {
		a := assessments[h.ContractAddress]
		v := models.ValuedToken{
			HeldToken:           h,
			PriceUSD:            a.PriceUSD,
			SecurityScore:       a.SecurityScore,
			ImpermanentLossRisk: a.ImpermanentLossRisk,
			RiskValue:           RiskValue(a.SecurityScore, a.ImpermanentLossRisk),
		}
		if price, ok := a.PriceUSD.Get(); ok {
			v.ValueUSD = h.Balance.InexactFloat64() * price
		}
		snapshot.TotalValueUSD += v.ValueUSD
		snapshot.Tokens[i] = v
	}

	if snapshot.TotalValueUSD > 0 {
		for i := range snapshot.Tokens {
			t := &snapshot.Tokens[i]
			t.HoldingPercent = 100 * t.ValueUSD / snapshot.TotalValueUSD
		}
	}

	snapshot.WeightedRisk, snapshot.WeightedSecurityScore = weighted(snapshot.Tokens)
	return snapshot
}

func weighted(tokens []models.ValuedToken) (risk, security float64) {
	for _, t := range tokens {
		share := t.HoldingPercent / 100
		risk += share * t.RiskValue
		security += share * t.SecurityScore
	}
	return risk, security
}
