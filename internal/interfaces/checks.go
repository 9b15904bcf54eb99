package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// =============================================================================
// Services
// =============================================================================

var _ http.AccountService = (*auth.Service)(nil)
var _ http.CatalogService = (*catalog.Service)(nil)
var _ http.CirculationService = (*circulation.Service)(nil)

// =============================================================================
// Authentication
// =============================================================================

var _ auth.AccessValidator = (*auth.TokenService)(nil)
var _ http.LoginLimiter = (*auth.RateLimiter)(nil)

// =============================================================================
// Audit Trail
// =============================================================================

var _ http.AuditLogger = (*audit.Service)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ tasks.AuditPurger = (*audit.Service)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ scheduler.AuditPurgeEnqueuer = (*tasks.Client)(nil)

// =============================================================================
// Health
// =============================================================================

var _ http.Pinger = (*database.Database)(nil)
