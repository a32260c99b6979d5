package scheduler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dag-trigger-gateway/internal/config"
	"dag-trigger-gateway/internal/metrics"
	"dag-trigger-gateway/internal/models"
	"dag-trigger-gateway/internal/repository"
)

var testMetrics = metrics.NewMetrics()

func newTestScheduler(t *testing.T) (*Scheduler, *repository.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.ProcessedMessage{}, &models.TriggerLog{}))

	repo := repository.New(db)
	return NewScheduler(&config.StatsConfig{IntervalMinutes: 60}, repo, testMetrics), repo
}

func TestSchedulerRestart(t *testing.T) {
	sched, _ := newTestScheduler(t)

	if err := sched.Start(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after Start")
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if sched.IsRunning() {
		t.Fatalf("scheduler should not be running after Stop")
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after second Start")
	}
	// context should be active
	if sched.ctx == nil || sched.ctx.Err() != nil {
		t.Fatalf("scheduler context should be active after restart")
	}
	sched.Stop()
}

func TestSchedulerDoubleStart(t *testing.T) {
	sched, _ := newTestScheduler(t)

	require.NoError(t, sched.Start())
	assert.Error(t, sched.Start())
	require.NoError(t, sched.Stop())
}

func TestRefreshStats(t *testing.T) {
	sched, repo := newTestScheduler(t)
	ctx := context.Background()

	_, err := repo.Claim(ctx, "abc123")
	require.NoError(t, err)
	_, err = repo.Claim(ctx, "def456")
	require.NoError(t, err)
	require.NoError(t, repo.LogTriggerAttempt(ctx, "abc123", "sales_cleaning", models.TriggerStatusFailure, "boom"))

	sched.refreshStats()
	sched.Wait()

	assert.Equal(t, float64(2), testutil.ToFloat64(testMetrics.ProcessedMessages))
	assert.Equal(t, float64(1), testutil.ToFloat64(testMetrics.FailedTriggers))
	assert.False(t, sched.GetLastRun().IsZero())
}
