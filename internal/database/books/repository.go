// Package books provides database operations for catalog titles and the
// per-title counter of copies on the shelf.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	ok, err := repo.DecrementAvailable(bookID)
//
// DecrementAvailable and IncrementAvailable are compare-and-set updates; they
// never move current_quantity outside [0, original_quantity].
package books

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/entities"
)

// Filter narrows a catalog listing. Empty fields are ignored.
type Filter struct {
	Title              string // substring
	Author             string // substring
	ISBN               string // substring
	Category           string // exact category name
	IncludeUnavailable bool
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(book *entities.Book) error {
	return r.db.Omit(clause.Associations).Create(book).Error
}

// GetByID retrieves a book with its category.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Preload("Category").First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByIDForUpdate row-locks the book for the rest of the transaction.
func (r *Repository) GetByIDForUpdate(id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns books matching the filter ordered by title. Unless the filter
// says otherwise only titles with at least one copy on the shelf are returned.
func (r *Repository) List(filter Filter) ([]entities.Book, error) {
	query := r.db.Model(&entities.Book{}).
		Joins("JOIN categories ON categories.id = books.category_id").
		Preload("Category")

	if !filter.IncludeUnavailable {
		query = query.Where("books.current_quantity >= ?", 1)
	}
	if filter.Title != "" {
		query = query.Where("books.title LIKE ?", "%"+filter.Title+"%")
	}
	if filter.Author != "" {
		query = query.Where("books.author LIKE ?", "%"+filter.Author+"%")
	}
	if filter.ISBN != "" {
		query = query.Where("books.isbn LIKE ?", "%"+filter.ISBN+"%")
	}
	if filter.Category != "" {
		query = query.Where("categories.name = ?", filter.Category)
	}

	var result []entities.Book
	err := query.Order("books.title ASC").Order("books.id ASC").Find(&result).Error
	return result, err
}

// Update applies column updates to one book and reports whether it exists.
func (r *Repository) Update(id uint, updates map[string]any) (bool, error) {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Updates(updates)
	return result.RowsAffected > 0, result.Error
}

// Delete soft-deletes the book so that past borrows keep resolving its title.
func (r *Repository) Delete(id uint) (bool, error) {
	result := r.db.Delete(&entities.Book{}, id)
	return result.RowsAffected > 0, result.Error
}

// DecrementAvailable takes one copy off the shelf. It reports false when the
// book does not exist or has no copy left.
func (r *Repository) DecrementAvailable(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND current_quantity > 0", id).
		UpdateColumn("current_quantity", gorm.Expr("current_quantity - ?", 1))
	return result.RowsAffected == 1, result.Error
}

// IncrementAvailable puts one copy back. It reports false when the counter
// is already at original_quantity.
func (r *Repository) IncrementAvailable(id uint) (bool, error) {
	result := r.db.Model(&entities.Book{}).
		Where("id = ? AND current_quantity < original_quantity", id).
		UpdateColumn("current_quantity", gorm.Expr("current_quantity + ?", 1))
	return result.RowsAffected == 1, result.Error
}
