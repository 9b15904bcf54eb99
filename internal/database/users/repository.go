// Package users provides database operations for member and administrator accounts.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	user, err := repo.GetByEmail("ada@example.com")
package users

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// Repository handles all user database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(user *entities.UserAccount) error {
	return r.db.Create(user).Error
}

// GetByID returns gorm.ErrRecordNotFound when no account matches.
func (r *Repository) GetByID(id uint) (*entities.UserAccount, error) {
	var user entities.UserAccount
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate loads the account and row-locks it for the rest of the
// transaction. SQLite ignores the locking clause.
func (r *Repository) GetByIDForUpdate(id uint) (*entities.UserAccount, error) {
	var user entities.UserAccount
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetByEmail(email string) (*entities.UserAccount, error) {
	var user entities.UserAccount
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) EmailExists(email string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.UserAccount{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// List returns every account ordered by first name.
func (r *Repository) List() ([]entities.UserAccount, error) {
	var users []entities.UserAccount
	err := r.db.Order("first_name ASC").Order("id ASC").Find(&users).Error
	return users, err
}

func (r *Repository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&entities.UserAccount{}).Count(&count).Error
	return count, err
}

// SetRole changes the role of the account with the given email. It reports
// false when no account exists or the account already has the role.
func (r *Repository) SetRole(email string, role entities.UserRole) (bool, error) {
	result := r.db.Model(&entities.UserAccount{}).
		Where("email = ? AND role <> ?", email, role).
		Update("role", role)
	return result.RowsAffected > 0, result.Error
}

// SetActive flips the active flag. It reports false when no account exists
// or the flag already has the requested value.
func (r *Repository) SetActive(email string, active bool) (bool, error) {
	result := r.db.Model(&entities.UserAccount{}).
		Where("email = ? AND is_active = ?", email, !active).
		Update("is_active", active)
	return result.RowsAffected > 0, result.Error
}

// RecordLogin clears the failure counter after a successful login.
func (r *Repository) RecordLogin(id uint, at time.Time) error {
	return r.db.Model(&entities.UserAccount{}).Where("id = ?", id).Updates(map[string]any{
		"last_login_at":      at,
		"failed_login_count": 0,
		"locked_until":       nil,
	}).Error
}

// RecordFailedLogin stores the new failure count and an optional lock expiry.
func (r *Repository) RecordFailedLogin(id uint, failedCount int, lockedUntil *time.Time) error {
	updates := map[string]any{"failed_login_count": failedCount}
	if lockedUntil != nil {
		updates["locked_until"] = *lockedUntil
	}
	return r.db.Model(&entities.UserAccount{}).Where("id = ?", id).Updates(updates).Error
}
