// Package portfolio values wallet holdings and plans security-driven rebalances.
package portfolio

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/types"
)

// ZeroAddress is the mint/burn counterparty
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// HoldingsPolicy filters which transfers and balances count as real holdings
type HoldingsPolicy struct {
	// MinBalance is exclusive: balances must be strictly greater to be kept
	MinBalance decimal.Decimal
	// SpamTokens holds lowercased contract addresses to ignore
	SpamTokens map[string]bool
}

// NewHoldingsPolicy builds a policy from a float floor and a spam contract list
func NewHoldingsPolicy(minBalance float64, spamTokens []string) HoldingsPolicy {
	spam := make(map[string]bool, len(spamTokens))
	for _, c := range spamTokens {
		spam[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return HoldingsPolicy{MinBalance: decimal.NewFromFloat(minBalance), SpamTokens: spam}
}

// AccumulateHoldings nets token transfers into per-contract balances for wallet.
// Received amounts add and sent amounts subtract. Decimal arithmetic keeps the
// result independent of transfer order. Output is sorted by contract address.
func AccumulateHoldings(wallet string, transfers []types.TokenTransfer, policy HoldingsPolicy) []models.HeldToken {
	wallet = strings.ToLower(wallet)
	byContract := make(map[string]*models.HeldToken)

	for _, tx := range transfers {
		contract := strings.ToLower(tx.ContractAddress)
		from := strings.ToLower(tx.From)
		to := strings.ToLower(tx.To)

		if policy.SpamTokens[contract] || from == ZeroAddress {
			continue
		}

		raw, err := decimal.NewFromString(tx.Value)
		if err != nil {
			continue
		}
		amount := raw.Shift(-int32(tx.TokenDecimal))

		var delta decimal.Decimal
		switch wallet {
		case to:
			delta = amount
		case from:
			delta = amount.Neg()
		default:
			continue
		}

		held, ok := byContract[contract]
		if !ok {
			held = &models.HeldToken{
				Name:            tx.TokenName,
				Symbol:          tx.TokenSymbol,
				ContractAddress: contract,
				Balance:         decimal.Zero,
			}
			byContract[contract] = held
		}
		held.Balance = held.Balance.Add(delta)
	}

	out := make([]models.HeldToken, 0, len(byContract))
	for _, held := range byContract {
		if held.Balance.GreaterThan(policy.MinBalance) {
			out = append(out, *held)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractAddress < out[j].ContractAddress })
	return out
}
