package users

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/database/dbtest"
	"github.com/mrlokans/librarian/internal/entities"
)

func TestRepository_CreateAndGet(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	user := &entities.UserAccount{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", PasswordHash: "h"}
	require.NoError(t, repo.Create(user))
	assert.NotZero(t, user.ID)

	got, err := repo.GetByEmail("grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, entities.UserRoleStudent, got.Role)
	assert.True(t, got.IsActive)

	_, err = repo.GetByID(9999)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepository_GetByIDForUpdate(t *testing.T) {
	db := dbtest.Open(t)
	user := dbtest.CreateUser(t, db, "lock@example.com", entities.UserRoleStudent)

	err := db.Transaction(func(tx *gorm.DB) error {
		got, err := NewRepository(tx).GetByIDForUpdate(user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.Email, got.Email)
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_EmailUnique(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	dbtest.CreateUser(t, db, "dup@example.com", entities.UserRoleStudent)
	exists, err := repo.EmailExists("dup@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	err = repo.Create(&entities.UserAccount{FirstName: "A", LastName: "B", Email: "dup@example.com", PasswordHash: "h"})
	assert.Error(t, err)
}

func TestRepository_ListOrdersByFirstName(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)

	for _, name := range []string{"Zoe", "Adam", "Mia"} {
		require.NoError(t, repo.Create(&entities.UserAccount{
			FirstName: name, LastName: "X", Email: name + "@example.com", PasswordHash: "h",
		}))
	}

	users, err := repo.List()
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "Adam", users[0].FirstName)
	assert.Equal(t, "Mia", users[1].FirstName)
	assert.Equal(t, "Zoe", users[2].FirstName)
}

func TestRepository_SetRole(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	dbtest.CreateUser(t, db, "member@example.com", entities.UserRoleStudent)

	changed, err := repo.SetRole("member@example.com", entities.UserRoleAdmin)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.SetRole("member@example.com", entities.UserRoleAdmin)
	require.NoError(t, err)
	assert.False(t, changed, "already admin")

	changed, err = repo.SetRole("ghost@example.com", entities.UserRoleAdmin)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRepository_SetActive(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	user := dbtest.CreateUser(t, db, "member@example.com", entities.UserRoleExternal)

	changed, err := repo.SetActive(user.Email, false)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	changed, err = repo.SetActive(user.Email, false)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.SetActive(user.Email, true)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestRepository_LoginBookkeeping(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	user := dbtest.CreateUser(t, db, "member@example.com", entities.UserRoleStudent)

	lockedUntil := time.Now().Add(time.Hour)
	require.NoError(t, repo.RecordFailedLogin(user.ID, 5, &lockedUntil))

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginCount)
	require.NotNil(t, got.LockedUntil)

	require.NoError(t, repo.RecordLogin(user.ID, time.Now()))
	got, err = repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)
	assert.NotNil(t, got.LastLoginAt)
}
