// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Service Interfaces
//
// HTTP controllers depend on narrow interfaces declared in internal/http/stores.go:
//
//   - AccountService: registration, login, refresh and account administration (auth.Service)
//   - CatalogService: books and categories (catalog.Service)
//   - CirculationService: borrows, returns, fines and notifications (circulation.Service)
//   - AuditLogger / AuditReader: the audit trail (audit.Service)
//   - LoginLimiter: login throttling (auth.RateLimiter)
//   - Pinger: database health (database.Database)
//
// ## Authentication
//
//   - AccessValidator: bearer token validation used by auth.Middleware
//
// ## Background Work
//
//   - AuditPurger: deletes expired audit events (internal/tasks)
//   - AuditPurgeEnqueuer: queues a purge from the cron scheduler (internal/scheduler)
//
// # Adding a New Endpoint
//
//  1. Add the operation to the service in its domain package, taking a
//     policy.Actor and returning *apperr.Error values for expected failures.
//
//  2. Extend the service interface in internal/http/stores.go and the fake in
//     internal/http/fakes_test.go.
//
//  3. Add a controller method and register the route in router.go under the
//     public, member or admin group.
//
// # Adding a New Database Domain
//
//  1. Create sub-package: internal/database/reservations/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Register the entity in database.NewDatabase's AutoMigrate list.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for examples.
package interfaces
