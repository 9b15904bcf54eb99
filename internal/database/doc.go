// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, category seeding
//	├── books/           # Catalog titles and the guarded quantity counter
//	├── categories/      # Category reference data
//	├── borrows/         # Borrow ledger and the guarded return transition
//	├── fines/           # Fines and the guarded payment transition
//	├── notifications/   # Member notifications
//	├── users/           # Member and administrator accounts
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository built from a *gorm.DB. Passing a
// transaction handle scopes every call to that transaction:
//
//	db, err := database.NewDatabase(cfg.Database, logger)
//
//	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
//		ok, err := books.NewRepository(tx).DecrementAvailable(bookID)
//		...
//		return borrows.NewRepository(tx).Create(borrow)
//	})
//
// # Guarded Updates
//
// State transitions that must happen at most once (a copy leaving the shelf,
// a borrow being returned, a fine being paid) are single UPDATE statements
// whose WHERE clause restates the expected pre-state. The repositories report
// whether a row changed, and callers treat "no row" as a conflict.
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Register the entity in NewDatabase's AutoMigrate call
package database
