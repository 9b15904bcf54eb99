package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

const defaultAuditRetentionDays = 90

// AuditPurger deletes audit events created before a cutoff.
type AuditPurger interface {
	PurgeBefore(cutoff time.Time) (int64, error)
}

// PurgeAuditEventsTask removes audit events older than RetentionDays.
type PurgeAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for audit purge tasks.
func (t PurgeAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Cutoff is the creation time before which events are purged.
func (t PurgeAuditEventsTask) Cutoff(now time.Time) time.Time {
	days := t.RetentionDays
	if days <= 0 {
		days = defaultAuditRetentionDays
	}
	return now.AddDate(0, 0, -days)
}

// PurgeAuditEventsProcessor creates a processor function for PurgeAuditEventsTask.
func PurgeAuditEventsProcessor(purger AuditPurger, logger *zap.Logger) backlite.QueueProcessor[PurgeAuditEventsTask] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, task PurgeAuditEventsTask) error {
		if purger == nil {
			return errors.New("audit purger not configured")
		}

		cutoff := task.Cutoff(time.Now())
		deleted, err := purger.PurgeBefore(cutoff)
		if err != nil {
			return fmt.Errorf("purge audit events: %w", err)
		}

		logger.Info("purge_audit_events finished", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
		return nil
	}
}

// NewPurgeAuditEventsQueue creates a backlite queue for audit purge tasks.
func NewPurgeAuditEventsQueue(purger AuditPurger, logger *zap.Logger) backlite.Queue {
	return backlite.NewQueue(PurgeAuditEventsProcessor(purger, logger))
}

// EnqueueAuditPurge schedules one PurgeAuditEventsTask and returns its id.
func (c *Client) EnqueueAuditPurge(retentionDays int) (string, error) {
	ids, err := c.Add(PurgeAuditEventsTask{RetentionDays: retentionDays}).Save()
	if err != nil {
		return "", fmt.Errorf("enqueue audit purge: %w", err)
	}
	if len(ids) == 0 {
		return "", errors.New("enqueue audit purge: no task id returned")
	}
	return ids[0], nil
}
