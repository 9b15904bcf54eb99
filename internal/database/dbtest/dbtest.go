// Package dbtest opens throwaway SQLite stores and seeds fixtures for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

// Open creates a migrated database in the test's temp dir and closes it on cleanup.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.NewDatabase(config.Database{
		Driver:   config.DatabaseDriverSQLite,
		Path:     filepath.Join(t.TempDir(), "library.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db.DB
}

// CreateUser inserts an active account. The password hash is a placeholder.
func CreateUser(t *testing.T, db *gorm.DB, email string, role entities.UserRole) *entities.UserAccount {
	t.Helper()

	user := &entities.UserAccount{
		FirstName:    "Test",
		LastName:     email,
		Email:        email,
		PasswordHash: "not-a-real-hash",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// Category returns the first seeded category.
func Category(t *testing.T, db *gorm.DB) *entities.Category {
	t.Helper()

	var category entities.Category
	require.NoError(t, db.Order("id").First(&category).Error)
	return &category
}

// CreateBook inserts a book with quantity copies, all on the shelf.
func CreateBook(t *testing.T, db *gorm.DB, addedBy uint, title string, quantity int) *entities.Book {
	t.Helper()

	book := &entities.Book{
		Title:            title,
		Author:           "Author of " + title,
		CategoryID:       Category(t, db).ID,
		ISBN:             "978-0000000000",
		Location:         "A1",
		OriginalQuantity: quantity,
		CurrentQuantity:  quantity,
		AddedByID:        addedBy,
	}
	require.NoError(t, db.Create(book).Error)
	return book
}

// ReloadBook reads the book back from the store, including soft-deleted rows.
func ReloadBook(t *testing.T, db *gorm.DB, id uint) *entities.Book {
	t.Helper()

	var book entities.Book
	require.NoError(t, db.Unscoped().First(&book, id).Error)
	return &book
}
