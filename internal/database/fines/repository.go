// Package fines provides database operations for overdue fines.
//
// Fines are written by the return flow and settled once through MarkPaid,
// whose predicate requires paid = false.
package fines

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// Payment carries the columns written when a fine is settled.
type Payment struct {
	Method        entities.PaymentMethod
	PaidAt        time.Time
	TransactionID *string
	CollectedByID *uint
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(fine *entities.Fine) error {
	return r.db.Omit(clause.Associations).Create(fine).Error
}

func (r *Repository) withBorrow() *gorm.DB {
	return r.db.
		Preload("Borrow").
		Preload("Borrow.Book", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

// GetByID loads the fine with its borrow and book.
func (r *Repository) GetByID(id uint) (*entities.Fine, error) {
	var fine entities.Fine
	if err := r.withBorrow().First(&fine, id).Error; err != nil {
		return nil, err
	}
	return &fine, nil
}

// GetForBorrower returns gorm.ErrRecordNotFound when the fine is someone else's.
func (r *Repository) GetForBorrower(id, borrowerID uint) (*entities.Fine, error) {
	var fine entities.Fine
	err := r.withBorrow().
		Joins("JOIN borrows ON borrows.id = fines.borrow_id").
		Where("borrows.borrowed_by_id = ?", borrowerID).
		First(&fine, "fines.id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &fine, nil
}

// ListForBorrower returns every fine charged to the member, newest first.
func (r *Repository) ListForBorrower(borrowerID uint) ([]entities.Fine, error) {
	var result []entities.Fine
	err := r.withBorrow().
		Joins("JOIN borrows ON borrows.id = fines.borrow_id").
		Where("borrows.borrowed_by_id = ?", borrowerID).
		Order("fines.date_created DESC").
		Order("fines.id DESC").
		Find(&result).Error
	return result, err
}

// MarkPaid settles an unpaid fine. It reports false when the fine does not
// exist or was already paid.
func (r *Repository) MarkPaid(id uint, payment Payment) (bool, error) {
	result := r.db.Model(&entities.Fine{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]any{
			"paid":            true,
			"date_paid":       payment.PaidAt,
			"payment_method":  payment.Method,
			"transaction_id":  payment.TransactionID,
			"collected_by_id": payment.CollectedByID,
		})
	return result.RowsAffected == 1, result.Error
}
