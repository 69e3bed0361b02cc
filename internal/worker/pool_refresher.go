// Package worker runs background jobs for the API server.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/service"
)

// Ingester refreshes the stored pools of a chain
type Ingester interface {
	IngestChain(ctx context.Context, chain string) (*service.IngestResult, error)
}

// PoolRefresher re-ingests the DeFi Llama pool feed on a fixed interval
type PoolRefresher struct {
	ingester Ingester
	chain    string
	interval time.Duration

	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	lastRun    time.Time
	lastResult *service.IngestResult
	lastError  string
	runs       int
	failedRuns int
}

// PoolRefresherConfig holds configuration for a pool refresher
type PoolRefresherConfig struct {
	Ingester Ingester
	Chain    string
	Interval time.Duration // default 1h
}

// PoolRefresherStatus is a snapshot of the refresher's progress
type PoolRefresherStatus struct {
	Chain      string                `json:"chain"`
	Running    bool                  `json:"running"`
	LastRun    time.Time             `json:"lastRun"`
	LastResult *service.IngestResult `json:"lastResult,omitempty"`
	LastError  string                `json:"lastError,omitempty"`
	Runs       int                   `json:"runs"`
	FailedRuns int                   `json:"failedRuns"`
}

// NewPoolRefresher creates a new pool refresher
func NewPoolRefresher(cfg *PoolRefresherConfig) (*PoolRefresher, error) {
	if cfg.Ingester == nil {
		return nil, fmt.Errorf("ingester cannot be nil")
	}
	if cfg.Chain == "" {
		return nil, fmt.Errorf("chain is required")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Hour
	}
	if interval < time.Second {
		return nil, fmt.Errorf("refresh interval must be at least 1s, got %v", interval)
	}

	return &PoolRefresher{
		ingester: cfg.Ingester,
		chain:    cfg.Chain,
		interval: interval,
	}, nil
}

// Start runs one ingest immediately, then one per interval until Stop or ctx is done
func (w *PoolRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("pool refresher for chain %s is already running", w.chain)
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	logging.WithField("chain", w.chain).Infof("Starting pool refresher with interval %v", w.interval)

	go w.loop(ctx, w.stopCh, w.doneCh)
	return nil
}

// Stop gracefully stops the refresher, waiting for an in-flight ingest
func (w *PoolRefresher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("pool refresher for chain %s is not running", w.chain)
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		logging.WithField("chain", w.chain).Info("Pool refresher stopped gracefully")
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *PoolRefresher) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single ingest. Failures are recorded and logged, never returned,
// so a bad upstream response does not stop the schedule.
func (w *PoolRefresher) RunOnce(ctx context.Context) {
	result, err := w.ingester.IngestChain(ctx, w.chain)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRun = time.Now()
	w.runs++
	if err != nil {
		w.failedRuns++
		w.lastError = err.Error()
		logging.WithError(err).WithField("chain", w.chain).Warn("pool refresh failed")
		return
	}
	w.lastError = ""
	w.lastResult = result
}

// GetStatus returns the current status of the refresher
func (w *PoolRefresher) GetStatus() *PoolRefresherStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &PoolRefresherStatus{
		Chain:      w.chain,
		Running:    w.running,
		LastRun:    w.lastRun,
		LastResult: w.lastResult,
		LastError:  w.lastError,
		Runs:       w.runs,
		FailedRuns: w.failedRuns,
	}
}
