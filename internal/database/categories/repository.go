// Package categories provides database operations for catalog categories.
package categories

import (
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

func (r *Repository) Create(category *entities.Category) error {
	return r.db.Omit(clause.Associations).Create(category).Error
}

func (r *Repository) GetByID(id uint) (*entities.Category, error) {
	var category entities.Category
	if err := r.db.First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) NameExists(name string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.Category{}).Where("name = ?", name).Count(&count).Error
	return count > 0, err
}

// List returns all categories ordered by name.
func (r *Repository) List() ([]entities.Category, error) {
	var result []entities.Category
	err := r.db.Order("name ASC").Find(&result).Error
	return result, err
}
