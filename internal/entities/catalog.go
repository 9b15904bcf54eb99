package entities

import (
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"uniqueIndex;size:100;not null" json:"name"`
	CreatedByID *uint        `gorm:"index" json:"created_by,omitempty"`
	CreatedBy   *UserAccount `gorm:"foreignKey:CreatedByID" json:"-"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}

// Book is a catalog title with a counter of copies on the shelf.
// CurrentQuantity never exceeds OriginalQuantity; the CHECK constraint
// backs the guarded updates in the books repository.
type Book struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"index;size:512;not null" json:"title"`
	Author           string         `gorm:"index;size:256;not null" json:"author"`
	CategoryID       uint           `gorm:"index;not null" json:"category_id"`
	Category         Category       `gorm:"foreignKey:CategoryID" json:"-"`
	ISBN             string         `gorm:"index;size:20" json:"isbn"`
	Location         string         `gorm:"size:100" json:"location"`
	OriginalQuantity int            `gorm:"not null;default:0" json:"original_quantity"`
	CurrentQuantity  int            `gorm:"not null;default:0;check:chk_books_quantity,current_quantity >= 0 AND current_quantity <= original_quantity" json:"current_quantity"`
	AddedByID        uint           `gorm:"index;not null" json:"added_by"`
	AddedBy          UserAccount    `gorm:"foreignKey:AddedByID" json:"-"`
	DateAdded        time.Time      `gorm:"autoCreateTime" json:"date_added"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// Available reports whether at least one copy is on the shelf.
func (b Book) Available() bool {
	return b.CurrentQuantity > 0
}
