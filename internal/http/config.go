package http

import (
	"go.uber.org/zap"

	"github.com/mrlokans/librarian/internal/auth"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core services
	Accounts    AccountService
	Catalog     CatalogService
	Circulation CirculationService

	// Authentication
	Tokens       auth.AccessValidator
	LoginLimiter LoginLimiter // nil disables throttling

	// Audit trail; both optional
	AuditLogger AuditLogger
	AuditReader AuditReader

	// Health checks
	Database Pinger
	Version  string

	Logger *zap.Logger

	// SecureTransport adds a Strict-Transport-Security header.
	SecureTransport bool
}
