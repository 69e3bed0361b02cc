package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/models"
)

type fakeFeed struct {
	pools []models.LiquidityPool
	err   error
}

func (f *fakeFeed) Pools(context.Context, string) ([]models.LiquidityPool, error) {
	return f.pools, f.err
}

type fakePoolWriter struct {
	seen map[string]bool
}

func (f *fakePoolWriter) UpsertMany(_ context.Context, pools []models.LiquidityPool) (int64, int64, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	var inserted, modified int64
	for _, p := range pools {
		if f.seen[p.Pool] {
			modified++
		} else {
			inserted++
		}
		f.seen[p.Pool] = true
	}
	return inserted, modified, nil
}

func TestIngestChain(t *testing.T) {
	feed := &fakeFeed{pools: []models.LiquidityPool{
		{Pool: "p1", Chain: "Sonic", Symbol: "BEETS-S"},
		{Pool: "p2", Chain: "Sonic", Symbol: "SHADOW"},
	}}
	writer := &fakePoolWriter{}
	svc := NewPoolIngestService(feed, writer)

	result, err := svc.IngestChain(context.Background(), "Sonic")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, int64(2), result.Inserted)

	result, err = svc.IngestChain(context.Background(), "Sonic")
	require.NoError(t, err)
	assert.Zero(t, result.Inserted)
	assert.Equal(t, int64(2), result.Modified)
}

func TestIngestChain_EmptyFeed(t *testing.T) {
	writer := &fakePoolWriter{}
	svc := NewPoolIngestService(&fakeFeed{}, writer)

	result, err := svc.IngestChain(context.Background(), "Sonic")
	require.NoError(t, err)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, result.Inserted+result.Modified)
	assert.Empty(t, writer.seen)
}

func TestIngestChain_FeedError(t *testing.T) {
	svc := NewPoolIngestService(&fakeFeed{err: errors.New("timeout")}, &fakePoolWriter{})

	_, err := svc.IngestChain(context.Background(), "Sonic")
	assert.True(t, apperrors.IsRetryable(err))
}
