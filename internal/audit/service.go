// Package audit records who did what to the library's records.
//
// Events are written in the background so a slow or failing audit insert
// never fails the request that produced it. Call Wait before closing the
// database to flush pending writes.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	logger  *zap.Logger
	pending sync.WaitGroup
}

func NewService(repo *audit.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Log records an event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			s.logger.Error("failed to log audit event",
				zap.String("action", event.Action),
				zap.Uint("user_id", event.UserID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every LogAsync call so far has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogCirculation records a borrow or return.
func (s *Service) LogCirculation(actorID uint, action, description string, borrowID uint, metadata map[string]any) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventCirculation,
		Action:      action,
		Description: truncate(description, 500),
		EntityType:  "borrow",
		EntityID:    &borrowID,
		Metadata:    encodeMetadata(metadata),
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// LogPayment records a settled fine.
func (s *Service) LogPayment(actorID, fineID uint, method entities.PaymentMethod, amount string) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventPayment,
		Action:      "fine_paid",
		Description: fmt.Sprintf("Fine %d paid by %s", fineID, method),
		EntityType:  "fine",
		EntityID:    &fineID,
		Metadata:    encodeMetadata(map[string]any{"method": method, "amount": amount}),
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// LogCatalog records a change to a book or category.
func (s *Service) LogCatalog(actorID uint, action, entityType string, entityID uint, description string) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: truncate(description, 500),
		EntityType:  entityType,
		EntityID:    &entityID,
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogUserAdmin records a role or activation change made by an admin.
func (s *Service) LogUserAdmin(actorID uint, action, targetEmail string) {
	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   entities.AuditEventUserAdmin,
		Action:      action,
		Description: truncate(action+": "+targetEmail, 500),
		EntityType:  "user",
		Status:      entities.AuditStatusSuccess,
	}
	s.LogAsync(event)
}

// Find retrieves paginated audit events.
func (s *Service) Find(q audit.Query) ([]entities.AuditEvent, int64, error) {
	return s.repo.Find(q)
}

// PurgeBefore removes events created before cutoff.
func (s *Service) PurgeBefore(cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("audit events purged", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	return deleted, nil
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
