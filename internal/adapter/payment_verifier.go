package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// erc20TransferSig is keccak256("Transfer(address,address,uint256)")
var erc20TransferSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ReceiptReader is the slice of ethclient the verifier needs
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// PaymentVerifier checks that a transaction paid the report fee in the payment token
type PaymentVerifier struct {
	receipts ReceiptReader
	token    common.Address
	treasury common.Address
	minimum  *big.Int
}

// NewPaymentVerifier creates a verifier. cost is in whole tokens and is scaled by decimals.
func NewPaymentVerifier(receipts ReceiptReader, token, treasury string, cost float64, decimals int) (*PaymentVerifier, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid payment token address: %q", token)
	}
	if !common.IsHexAddress(treasury) {
		return nil, fmt.Errorf("invalid treasury address: %q", treasury)
	}
	return &PaymentVerifier{
		receipts: receipts,
		token:    common.HexToAddress(token),
		treasury: common.HexToAddress(treasury),
		minimum:  decimal.NewFromFloat(cost).Shift(int32(decimals)).BigInt(),
	}, nil
}

// DialPaymentVerifier connects to rpcURL and builds a verifier on top of it
func DialPaymentVerifier(ctx context.Context, rpcURL, token, treasury string, cost float64, decimals int) (*PaymentVerifier, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to payment RPC: %w", err)
	}
	v, err := NewPaymentVerifier(client, token, treasury, cost, decimals)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return v, client, nil
}

// Verify reports whether txHash is a successful transfer of at least the report cost
// from payer to the treasury. A pending or unknown transaction is not verified.
func (v *PaymentVerifier) Verify(ctx context.Context, txHash, payer string) (bool, error) {
	if !IsTxHash(txHash) {
		return false, nil
	}
	receipt, err := v.receipts.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, &UpstreamError{Service: "payment-rpc", Cause: err}
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return false, nil
	}

	from := common.HexToAddress(payer)
	for _, l := range receipt.Logs {
		if l.Address != v.token || len(l.Topics) < 3 || l.Topics[0] != erc20TransferSig {
			continue
		}
		if common.BytesToAddress(l.Topics[1].Bytes()) != from || common.BytesToAddress(l.Topics[2].Bytes()) != v.treasury {
			continue
		}
		if new(big.Int).SetBytes(l.Data).Cmp(v.minimum) >= 0 {
			return true, nil
		}
	}
	return false, nil
}

// IsTxHash reports whether s looks like a 32-byte hex transaction hash
func IsTxHash(s string) bool {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
