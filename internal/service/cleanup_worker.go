package service

import (
	"context"
	"sync"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/rs/zerolog"
)

// GroupCleaner removes groups that have not been visited since a cutoff
type GroupCleaner interface {
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupWorker is a background worker that periodically deletes inactive groups
type CleanupWorker struct {
	groups    GroupCleaner
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool
}

// CleanupWorkerConfig holds configuration for the cleanup worker
type CleanupWorkerConfig struct {
	Interval  time.Duration // How often to sweep
	Retention time.Duration // How long an unvisited group is kept
}

// DefaultCleanupWorkerConfig returns sensible defaults
func DefaultCleanupWorkerConfig() CleanupWorkerConfig {
	return CleanupWorkerConfig{
		Interval:  24 * time.Hour,
		Retention: domain.GroupRetention,
	}
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(groups GroupCleaner, logger zerolog.Logger, config CleanupWorkerConfig) *CleanupWorker {
	defaults := DefaultCleanupWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}

	return &CleanupWorker{
		groups:    groups,
		logger:    logger.With().Str("component", "cleanup_worker").Logger(),
		interval:  config.Interval,
		retention: config.Retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// SetMetrics sets the metrics sink for removed groups
func (w *CleanupWorker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// Start begins the background sweep
func (w *CleanupWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Dur("retention", w.retention).
		Msg("Starting cleanup worker")

	go w.run(ctx)
}

// Stop gracefully stops the cleanup worker
func (w *CleanupWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping cleanup worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Cleanup worker stopped")
}

func (w *CleanupWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Run immediately on startup
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-w.stopCh:
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce deletes every group last accessed before now minus the retention period
func (w *CleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().Add(-w.retention)
	startTime := time.Now()

	deleted, err := w.groups.DeleteInactive(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Time("cutoff", cutoff).Msg("Failed to clean up inactive groups")
		return 0, err
	}
	w.metrics.ObserveCleanup(deleted)

	w.logger.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Dur("elapsed", time.Since(startTime)).
		Msg("Completed group cleanup")
	return deleted, nil
}

// IsRunning returns whether the worker is currently running
func (w *CleanupWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
