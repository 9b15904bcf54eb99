// Package scheduler runs cron-driven housekeeping.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultAuditCleanupSchedule runs the purge daily at 03:30.
const DefaultAuditCleanupSchedule = "30 3 * * *"

// AuditPurgeEnqueuer hands a purge off to the task queue.
type AuditPurgeEnqueuer interface {
	EnqueueAuditPurge(retentionDays int) (string, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule reports whether schedule is a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// AuditRetentionScheduler periodically enqueues audit purge tasks.
type AuditRetentionScheduler struct {
	enqueuer      AuditPurgeEnqueuer
	schedule      string
	retentionDays int
	logger        *zap.Logger

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewAuditRetentionScheduler(enqueuer AuditPurgeEnqueuer, schedule string, retentionDays int, logger *zap.Logger) *AuditRetentionScheduler {
	if schedule == "" {
		schedule = DefaultAuditCleanupSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRetentionScheduler{
		enqueuer:      enqueuer,
		schedule:      schedule,
		retentionDays: retentionDays,
		logger:        logger.Named("scheduler"),
		cron:          cron.New(cron.WithParser(parser)),
	}
}

// Start registers the job and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *AuditRetentionScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.RunNow); err != nil {
		return fmt.Errorf("failed to schedule audit purge: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	entries := s.cron.Entries()
	s.logger.Info("audit retention scheduler started",
		zap.String("schedule", s.schedule),
		zap.Int("retention_days", s.retentionDays),
		zap.Time("next_run", entries[0].Next),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job and stops the cron loop.
func (s *AuditRetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("audit retention scheduler stopped")
}

// RunNow enqueues a purge immediately.
func (s *AuditRetentionScheduler) RunNow() {
	id, err := s.enqueuer.EnqueueAuditPurge(s.retentionDays)
	if err != nil {
		s.logger.Error("failed to enqueue audit purge", zap.Error(err))
		return
	}
	s.logger.Info("audit purge enqueued", zap.String("task_id", id))
}

func (s *AuditRetentionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
