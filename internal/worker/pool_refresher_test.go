package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-health-scanner/internal/service"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeIngester) IngestChain(_ context.Context, chain string) (*service.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("upstream timeout")
	}
	return &service.IngestResult{Chain: chain, Fetched: 3, Inserted: 3}, nil
}

func (f *fakeIngester) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewPoolRefresher_Validation(t *testing.T) {
	_, err := NewPoolRefresher(&PoolRefresherConfig{Chain: "Sonic"})
	assert.Error(t, err)

	_, err = NewPoolRefresher(&PoolRefresherConfig{Ingester: &fakeIngester{}})
	assert.Error(t, err)

	_, err = NewPoolRefresher(&PoolRefresherConfig{Ingester: &fakeIngester{}, Chain: "Sonic", Interval: time.Millisecond})
	assert.Error(t, err)

	w, err := NewPoolRefresher(&PoolRefresherConfig{Ingester: &fakeIngester{}, Chain: "Sonic"})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, w.interval)
}

func TestPoolRefresher_RunOnceRecordsStatus(t *testing.T) {
	ingester := &fakeIngester{}
	w, err := NewPoolRefresher(&PoolRefresherConfig{Ingester: ingester, Chain: "Sonic"})
	require.NoError(t, err)

	w.RunOnce(context.Background())
	status := w.GetStatus()
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, 3, status.LastResult.Fetched)
	assert.Empty(t, status.LastError)

	ingester.fail = true
	w.RunOnce(context.Background())
	status = w.GetStatus()
	assert.Equal(t, 2, status.Runs)
	assert.Equal(t, 1, status.FailedRuns)
	assert.Equal(t, "upstream timeout", status.LastError)
	assert.NotNil(t, status.LastResult, "last good result is kept")
}

func TestPoolRefresher_StartStop(t *testing.T) {
	ingester := &fakeIngester{}
	w, err := NewPoolRefresher(&PoolRefresherConfig{Ingester: ingester, Chain: "Sonic", Interval: time.Second})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return ingester.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	assert.False(t, w.GetStatus().Running)
	assert.Error(t, w.Stop(ctx))
}
