package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-health-scanner/internal/models"
)

func TestSessionStore_Lifecycle(t *testing.T) {
	cache, mr := newTestRedis(t)
	store := NewSessionStore(cache, time.Hour)
	ctx := testContext(t)

	session, err := store.Create(ctx, "0xABCdef0000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", session.WalletAddress)
	assert.WithinDuration(t, session.CreatedAt.Add(time.Hour), session.ExpiresAt, time.Second)

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.WalletAddress, got.WalletAddress)

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Get(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	expiring, err := store.Create(ctx, "0x0000000000000000000000000000000000000002")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, expiring.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccessGrantStore(t *testing.T) {
	cache, mr := newTestRedis(t)
	store := NewAccessGrantStore(cache)
	ctx := testContext(t)
	wallet := "0x00000000000000000000000000000000000000AA"

	ok, err := store.HasAccess(ctx, wallet)
	require.NoError(t, err)
	assert.False(t, ok)

	now := time.Now().UTC()
	require.NoError(t, store.Grant(ctx, &models.AccessGrant{
		WalletAddress: wallet,
		TxHash:        "0x01",
		GrantedAt:     now,
		ExpiresAt:     now.Add(30 * 24 * time.Hour),
	}))

	ok, err = store.HasAccess(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, ok)

	grant, err := store.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", grant.WalletAddress)

	mr.FastForward(31 * 24 * time.Hour)
	ok, err = store.HasAccess(ctx, wallet)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccessGrantStore_RejectsExpiredGrant(t *testing.T) {
	cache, _ := newTestRedis(t)
	store := NewAccessGrantStore(cache)

	err := store.Grant(testContext(t), &models.AccessGrant{
		WalletAddress: "0xaa",
		ExpiresAt:     time.Now().Add(-time.Minute),
	})
	assert.Error(t, err)
}

func TestAccessGrantStore_ClaimPaymentOnce(t *testing.T) {
	cache, _ := newTestRedis(t)
	store := NewAccessGrantStore(cache)
	ctx := testContext(t)

	first, err := store.ClaimPayment(ctx, "0xABC", "0xaa")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.ClaimPayment(ctx, "0xabc", "0xbb")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestAccessGrantStore_ReleasePayment(t *testing.T) {
	cache, mr := newTestRedis(t)
	store := NewAccessGrantStore(cache)
	ctx := testContext(t)

	claimed, err := store.ClaimPayment(ctx, "0xABC", "0xaa")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.ReleasePayment(ctx, "0xAbc"))
	assert.False(t, mr.Exists("payment:0xabc"))

	claimed, err = store.ClaimPayment(ctx, "0xabc", "0xaa")
	require.NoError(t, err)
	assert.True(t, claimed)
}
