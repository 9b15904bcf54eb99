// Package borrows provides database operations for the borrow ledger.
//
// A borrow row is written once when a copy leaves the shelf and updated once
// when it comes back. MarkReturned restates is_returned = false in its
// predicate, so a second return of the same row changes nothing.
package borrows

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(borrow *entities.Borrow) error {
	return r.db.Omit(clause.Associations).Create(borrow).Error
}

// withDetails preloads the book (including soft-deleted ones) and fines.
func (r *Repository) withDetails() *gorm.DB {
	return r.db.
		Preload("Book", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Fines")
}

func (r *Repository) GetByID(id uint) (*entities.Borrow, error) {
	var borrow entities.Borrow
	if err := r.withDetails().First(&borrow, id).Error; err != nil {
		return nil, err
	}
	return &borrow, nil
}

// GetForBorrower returns gorm.ErrRecordNotFound when the borrow belongs to someone else.
func (r *Repository) GetForBorrower(id, borrowerID uint) (*entities.Borrow, error) {
	var borrow entities.Borrow
	err := r.withDetails().
		Where("borrowed_by_id = ?", borrowerID).
		First(&borrow, id).Error
	if err != nil {
		return nil, err
	}
	return &borrow, nil
}

// ListForBorrower returns the member's borrows, newest first.
func (r *Repository) ListForBorrower(borrowerID uint, includeReturned bool) ([]entities.Borrow, error) {
	query := r.withDetails().Where("borrowed_by_id = ?", borrowerID)
	if !includeReturned {
		query = query.Where("is_returned = ?", false)
	}

	var result []entities.Borrow
	err := query.Order("borrow_date DESC").Order("id DESC").Find(&result).Error
	return result, err
}

func (r *Repository) CountOpenForBorrower(borrowerID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Borrow{}).
		Where("borrowed_by_id = ? AND is_returned = ?", borrowerID, false).
		Count(&count).Error
	return count, err
}

func (r *Repository) CountOpenForBook(bookID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Borrow{}).
		Where("book_id = ? AND is_returned = ?", bookID, false).
		Count(&count).Error
	return count, err
}

// MarkReturned closes an open borrow. It reports false when the borrow does
// not exist or was already returned.
func (r *Repository) MarkReturned(id, receivedBy uint, at time.Time) (bool, error) {
	result := r.db.Model(&entities.Borrow{}).
		Where("id = ? AND is_returned = ?", id, false).
		Updates(map[string]any{
			"is_returned":    true,
			"return_date":    at,
			"received_by_id": receivedBy,
		})
	return result.RowsAffected == 1, result.Error
}
