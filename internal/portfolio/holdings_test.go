package portfolio

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-health-scanner/internal/types"
)

const (
	wallet = "0x1111111111111111111111111111111111111111"
	other  = "0x2222222222222222222222222222222222222222"
	anon   = "0xaaaa000000000000000000000000000000000001"
	beets  = "0xbbbb000000000000000000000000000000000002"
	spam   = "0xdead000000000000000000000000000000000003"
)

func transfer(contract, symbol, from, to, value string, decimals int) types.TokenTransfer {
	return types.TokenTransfer{
		ContractAddress: contract,
		TokenSymbol:     symbol,
		TokenName:       symbol,
		From:            from,
		To:              to,
		Value:           value,
		TokenDecimal:    decimals,
	}
}

func TestAccumulateHoldings(t *testing.T) {
	policy := NewHoldingsPolicy(0.01, []string{spam})
	transfers := []types.TokenTransfer{
		transfer(anon, "ANON", other, wallet, "5000000000000000000", 18),
		transfer(anon, "ANON", wallet, other, "1500000000000000000", 18),
		transfer(beets, "BEETS", other, wallet, "20000", 6),    // 0.02
		transfer(beets, "BEETS", wallet, other, "15000", 6),    // leaves 0.005
		transfer(spam, "SPAM", other, wallet, "1000000", 0),    // spam list
		transfer(anon, "ANON", ZeroAddress, wallet, "1000", 0), // mint origin
		transfer(anon, "ANON", other, other, "999", 0),         // unrelated
		transfer(anon, "ANON", other, wallet, "not-a-number", 18),
	}

	got := AccumulateHoldings("0x1111111111111111111111111111111111111111", transfers, policy)

	require.Len(t, got, 1)
	assert.Equal(t, "ANON", got[0].Symbol)
	assert.Equal(t, anon, got[0].ContractAddress)
	assert.True(t, got[0].Balance.Equal(decimal.RequireFromString("3.5")), "balance = %s", got[0].Balance)
}

func TestAccumulateHoldings_FloorIsExclusive(t *testing.T) {
	policy := NewHoldingsPolicy(0.01, nil)
	got := AccumulateHoldings(wallet, []types.TokenTransfer{
		transfer(beets, "BEETS", other, wallet, "10000", 6), // exactly 0.01
	}, policy)
	assert.Empty(t, got)
}

func TestAccumulateHoldings_CaseInsensitive(t *testing.T) {
	policy := NewHoldingsPolicy(0.01, []string{"0xDEAD000000000000000000000000000000000003"})
	got := AccumulateHoldings("0X1111111111111111111111111111111111111111", []types.TokenTransfer{
		transfer("0xAAAA000000000000000000000000000000000001", "ANON", other, wallet, "2", 0),
		transfer(spam, "SPAM", other, wallet, "2", 0),
	}, policy)
	require.Len(t, got, 1)
	assert.Equal(t, anon, got[0].ContractAddress)
}

// Property: the same transfers in any order produce the same balances
func TestAccumulateHoldings_OrderIndependent(t *testing.T) {
	policy := NewHoldingsPolicy(0.01, nil)
	properties := gopter.NewProperties(nil)

	properties.Property("permutation does not change balances", prop.ForAll(
		func(amounts []int64, seed int64) bool {
			transfers := make([]types.TokenTransfer, 0, len(amounts))
			for i, a := range amounts {
				from, to := other, wallet
				if a < 0 {
					from, to, a = wallet, other, -a
				}
				contract := anon
				if i%2 == 1 {
					contract = beets
				}
				transfers = append(transfers, transfer(contract, "T", from, to, decimal.NewFromInt(a).String(), 9))
			}

			shuffled := make([]types.TokenTransfer, len(transfers))
			copy(shuffled, transfers)
			rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})

			a := AccumulateHoldings(wallet, transfers, policy)
			b := AccumulateHoldings(wallet, shuffled, policy)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i].ContractAddress != b[i].ContractAddress || !a[i].Balance.Equal(b[i].Balance) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-1_000_000_000_000, 1_000_000_000_000)),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
