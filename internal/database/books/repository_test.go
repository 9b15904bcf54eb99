package books

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database/dbtest"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, *entities.UserAccount) {
	t.Helper()
	db := dbtest.Open(t)
	admin := dbtest.CreateUser(t, db, "admin@example.com", entities.UserRoleAdmin)
	return db, NewRepository(db), admin
}

func TestRepository_CreateAndGet(t *testing.T) {
	db, repo, admin := setupTestDB(t)
	category := dbtest.Category(t, db)

	book := &entities.Book{
		Title:            "The Left Hand of Darkness",
		Author:           "Ursula K. Le Guin",
		CategoryID:       category.ID,
		ISBN:             "9780441478125",
		Location:         "B2",
		OriginalQuantity: 3,
		CurrentQuantity:  3,
		AddedByID:        admin.ID,
	}
	require.NoError(t, repo.Create(book))

	got, err := repo.GetByID(book.ID)
	require.NoError(t, err)
	assert.Equal(t, category.Name, got.Category.Name)
	assert.False(t, got.DateAdded.IsZero())

	_, err = repo.GetByID(4242)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepository_DecrementAvailable(t *testing.T) {
	db, repo, admin := setupTestDB(t)
	book := dbtest.CreateBook(t, db, admin.ID, "Solaris", 1)

	ok, err := repo.DecrementAvailable(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DecrementAvailable(book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "no copy left")

	assert.Equal(t, 0, dbtest.ReloadBook(t, db, book.ID).CurrentQuantity)

	ok, err = repo.DecrementAvailable(9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_IncrementAvailable(t *testing.T) {
	db, repo, admin := setupTestDB(t)
	book := dbtest.CreateBook(t, db, admin.ID, "Solaris", 2)

	ok, err := repo.IncrementAvailable(book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already at original quantity")

	_, err = repo.DecrementAvailable(book.ID)
	require.NoError(t, err)

	ok, err = repo.IncrementAvailable(book.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, dbtest.ReloadBook(t, db, book.ID).CurrentQuantity)
}

func TestRepository_List(t *testing.T) {
	db, repo, admin := setupTestDB(t)

	var science entities.Category
	require.NoError(t, db.Where("name = ?", "Science").First(&science).Error)

	dbtest.CreateBook(t, db, admin.ID, "Neuromancer", 1)
	dbtest.CreateBook(t, db, admin.ID, "Brave New World", 2)
	gone := dbtest.CreateBook(t, db, admin.ID, "Annihilation", 1)
	_, err := repo.DecrementAvailable(gone.ID)
	require.NoError(t, err)

	cosmos := &entities.Book{
		Title: "Cosmos", Author: "Carl Sagan", CategoryID: science.ID, ISBN: "9780345539434",
		OriginalQuantity: 1, CurrentQuantity: 1, AddedByID: admin.ID,
	}
	require.NoError(t, repo.Create(cosmos))

	t.Run("only available, ordered by title", func(t *testing.T) {
		list, err := repo.List(Filter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Brave New World", list[0].Title)
		assert.Equal(t, "Cosmos", list[1].Title)
		assert.Equal(t, "Neuromancer", list[2].Title)
	})

	t.Run("include unavailable", func(t *testing.T) {
		list, err := repo.List(Filter{IncludeUnavailable: true})
		require.NoError(t, err)
		assert.Len(t, list, 4)
	})

	t.Run("title substring", func(t *testing.T) {
		list, err := repo.List(Filter{Title: "mancer"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Neuromancer", list[0].Title)
	})

	t.Run("category exact with joined name", func(t *testing.T) {
		list, err := repo.List(Filter{Category: "Science"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Science", list[0].Category.Name)
	})

	t.Run("filters are combined", func(t *testing.T) {
		list, err := repo.List(Filter{Author: "Sagan", Category: "Fiction"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("input is bound, not interpolated", func(t *testing.T) {
		list, err := repo.List(Filter{Title: "' OR 1=1 --"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestRepository_UpdateAndDelete(t *testing.T) {
	db, repo, admin := setupTestDB(t)
	book := dbtest.CreateBook(t, db, admin.ID, "Kindred", 1)

	found, err := repo.Update(book.ID, map[string]any{"location": "C3"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "C3", dbtest.ReloadBook(t, db, book.ID).Location)

	found, err = repo.Update(9999, map[string]any{"location": "C3"})
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := repo.Delete(book.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByID(book.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.True(t, dbtest.ReloadBook(t, db, book.ID).DeletedAt.Valid)

	ok, err := repo.DecrementAvailable(book.ID)
	require.NoError(t, err)
	assert.False(t, ok, "deleted books cannot be borrowed")
}
