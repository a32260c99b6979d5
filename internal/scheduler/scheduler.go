package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"dag-trigger-gateway/internal/config"
	"dag-trigger-gateway/internal/metrics"
	"dag-trigger-gateway/internal/models"
	"dag-trigger-gateway/internal/repository"
)

// Scheduler periodically refreshes the ledger gauges from the database so
// /metrics reflects totals across all gateway instances, not just counters
// of the local process.
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.StatsConfig
	repo      *repository.Repository
	metrics   *metrics.Metrics
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	lastRun   time.Time
	mu        sync.RWMutex
}

// NewScheduler creates a new stats scheduler
func NewScheduler(cfg *config.StatsConfig, repo *repository.Repository, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		config:  cfg,
		repo:    repo,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("0 */%d * * * *", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.refreshStats)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Stats scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	s.cron.Remove(s.entryID)

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Stats scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Stats scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce triggers a stats refresh outside the schedule
func (s *Scheduler) RunOnce() {
	go s.refreshStats()
}

// Wait blocks until in-flight refreshes finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// GetLastRun returns the time of the last completed refresh
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// GetNextRun returns the next scheduled refresh time
func (s *Scheduler) GetNextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) refreshStats() {
	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx.Err() != nil {
		return
	}

	processed, err := s.repo.CountProcessed(ctx)
	if err != nil {
		logrus.Errorf("Failed to count processed messages: %v", err)
		return
	}
	s.metrics.ProcessedMessages.Set(float64(processed))

	failures, err := s.repo.CountTriggersByStatus(ctx, models.TriggerStatusFailure)
	if err != nil {
		logrus.Errorf("Failed to count failed triggers: %v", err)
		return
	}
	s.metrics.FailedTriggers.Set(float64(failures))

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	logrus.Debugf("Refreshed ledger stats: processed=%d failures=%d", processed, failures)
}
