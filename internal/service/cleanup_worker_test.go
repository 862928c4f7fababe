package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCleaner captures the cutoffs the worker asks for
type recordingCleaner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	err     error
}

func (c *recordingCleaner) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cutoffs = append(c.cutoffs, cutoff)
	if c.err != nil {
		return 0, c.err
	}
	return c.deleted, nil
}

func (c *recordingCleaner) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cutoffs)
}

func setupCleanupWorker() (*CleanupWorker, *recordingCleaner) {
	cleaner := &recordingCleaner{}
	config := CleanupWorkerConfig{
		Interval:  20 * time.Millisecond, // Fast interval for testing
		Retention: 90 * 24 * time.Hour,
	}
	worker := NewCleanupWorker(cleaner, zerolog.Nop(), config)
	worker.now = func() time.Time { return groupNow }
	return worker, cleaner
}

func TestCleanupWorker_DefaultConfig(t *testing.T) {
	config := DefaultCleanupWorkerConfig()

	assert.Equal(t, 24*time.Hour, config.Interval)
	assert.Equal(t, domain.GroupRetention, config.Retention)
}

func TestCleanupWorker_DefaultsForInvalidConfig(t *testing.T) {
	worker := NewCleanupWorker(&recordingCleaner{}, zerolog.Nop(), CleanupWorkerConfig{})

	assert.Equal(t, 24*time.Hour, worker.interval)
	assert.Equal(t, domain.GroupRetention, worker.retention)
	assert.False(t, worker.IsRunning())
}

func TestCleanupWorker_RunOnce_UsesRetentionCutoff(t *testing.T) {
	worker, cleaner := setupCleanupWorker()
	cleaner.deleted = 3
	m := metrics.New(prometheus.NewRegistry())
	worker.SetMetrics(m)

	deleted, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	require.Len(t, cleaner.cutoffs, 1)
	assert.Equal(t, groupNow.Add(-90*24*time.Hour), cleaner.cutoffs[0])
	assert.Equal(t, 3.0, testutil.ToFloat64(m.GroupsCleanedTotal))
}

func TestCleanupWorker_RunOnce_Error(t *testing.T) {
	worker, cleaner := setupCleanupWorker()
	cleaner.err = errors.New("db down")

	deleted, err := worker.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, deleted)
}

func TestCleanupWorker_StartStop(t *testing.T) {
	worker, cleaner := setupCleanupWorker()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	worker.Start(ctx) // idempotent
	assert.True(t, worker.IsRunning())

	// Runs immediately, then on every tick
	assert.Eventually(t, func() bool { return cleaner.Runs() >= 2 }, time.Second, 5*time.Millisecond)

	worker.Stop()
	assert.False(t, worker.IsRunning())

	runs := cleaner.Runs()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, runs, cleaner.Runs(), "no sweeps after stop")
}

func TestCleanupWorker_ErrorIsNotFatal(t *testing.T) {
	worker, cleaner := setupCleanupWorker()
	cleaner.err = errors.New("db down")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	assert.Eventually(t, func() bool { return cleaner.Runs() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, worker.IsRunning())
	worker.Stop()
}

func TestCleanupWorker_StopWithoutStart(t *testing.T) {
	worker, _ := setupCleanupWorker()

	assert.NotPanics(t, func() { worker.Stop() })
}

func TestCleanupWorker_ContextCancellation(t *testing.T) {
	worker, _ := setupCleanupWorker()

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !worker.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestCleanupWorker_WithGroupService(t *testing.T) {
	svc, repo, _ := setupGroupService(t)
	repo.AddGroup(&domain.Group{ID: "stale", LastAccessed: groupNow.Add(-91 * 24 * time.Hour)})
	repo.AddGroup(&domain.Group{ID: "fresh", LastAccessed: groupNow.Add(-89 * 24 * time.Hour)})

	worker := NewCleanupWorker(svc, zerolog.Nop(), DefaultCleanupWorkerConfig())
	worker.now = func() time.Time { return groupNow }

	deleted, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, []string{"fresh"}, repo.GroupIDs())
}
