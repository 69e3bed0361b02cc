package adapter

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenAddr    = "0x00000000000000000000000000000000000000aa"
	treasuryAddr = "0x00000000000000000000000000000000000000bb"
	payerAddr    = "0x00000000000000000000000000000000000000cc"
	paidTx       = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

type fakeReceipts map[common.Hash]*ethtypes.Receipt

func (f fakeReceipts) TransactionReceipt(_ context.Context, h common.Hash) (*ethtypes.Receipt, error) {
	if r, ok := f[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func transferLog(token, from, to string, amount *big.Int) *ethtypes.Log {
	return &ethtypes.Log{
		Address: common.HexToAddress(token),
		Topics: []common.Hash{
			erc20TransferSig,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

func oneToken() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func TestPaymentVerifier_Verify(t *testing.T) {
	tests := []struct {
		name    string
		receipt *ethtypes.Receipt
		payer   string
		want    bool
	}{
		{
			name:    "exact payment",
			receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, Logs: []*ethtypes.Log{transferLog(tokenAddr, payerAddr, treasuryAddr, oneToken())}},
			payer:   payerAddr,
			want:    true,
		},
		{
			name:    "underpaid",
			receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, Logs: []*ethtypes.Log{transferLog(tokenAddr, payerAddr, treasuryAddr, big.NewInt(1))}},
			payer:   payerAddr,
			want:    false,
		},
		{
			name:    "wrong payer",
			receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, Logs: []*ethtypes.Log{transferLog(tokenAddr, payerAddr, treasuryAddr, oneToken())}},
			payer:   "0x00000000000000000000000000000000000000dd",
			want:    false,
		},
		{
			name:    "wrong token",
			receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, Logs: []*ethtypes.Log{transferLog(treasuryAddr, payerAddr, treasuryAddr, oneToken())}},
			payer:   payerAddr,
			want:    false,
		},
		{
			name:    "reverted",
			receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, Logs: []*ethtypes.Log{transferLog(tokenAddr, payerAddr, treasuryAddr, oneToken())}},
			payer:   payerAddr,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipts := fakeReceipts{common.HexToHash(paidTx): tt.receipt}
			v, err := NewPaymentVerifier(receipts, tokenAddr, treasuryAddr, 1, 18)
			require.NoError(t, err)

			got, err := v.Verify(context.Background(), paidTx, tt.payer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaymentVerifier_UnknownOrMalformedTx(t *testing.T) {
	v, err := NewPaymentVerifier(fakeReceipts{}, tokenAddr, treasuryAddr, 1, 18)
	require.NoError(t, err)

	ok, err := v.Verify(context.Background(), paidTx, payerAddr)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(context.Background(), "0x1234", payerAddr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewPaymentVerifier_RejectsBadAddresses(t *testing.T) {
	_, err := NewPaymentVerifier(fakeReceipts{}, "nope", treasuryAddr, 1, 18)
	assert.Error(t, err)
}

func TestWalletHelpers(t *testing.T) {
	addr, ok := NormalizeAddress("0x00000000000000000000000000000000000000AA")
	require.True(t, ok)
	assert.Equal(t, tokenAddr, addr)

	_, ok = NormalizeAddress("0xnothex")
	assert.False(t, ok)

	// well-known test key 0x...01 maps to this address
	derived, err := AddressFromPrivateKey("0x0000000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", derived)

	_, err = AddressFromPrivateKey("zz")
	assert.Error(t, err)
}
