package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Borrow is one loan of one copy. It moves from open to returned exactly once.
type Borrow struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	BookID       uint         `gorm:"index;not null" json:"book_id"`
	Book         Book         `gorm:"foreignKey:BookID" json:"-"`
	BorrowedByID uint         `gorm:"index;not null" json:"borrowed_by"`
	BorrowedBy   UserAccount  `gorm:"foreignKey:BorrowedByID" json:"-"`
	GivenByID    uint         `gorm:"not null" json:"given_by"`
	GivenBy      UserAccount  `gorm:"foreignKey:GivenByID" json:"-"`
	BorrowDate   time.Time    `gorm:"not null" json:"borrow_date"`
	DueDate      time.Time    `gorm:"not null" json:"due_date"`
	IsReturned   bool         `gorm:"index;not null;default:false" json:"is_returned"`
	ReturnDate   *time.Time   `json:"return_date,omitempty"`
	ReceivedByID *uint        `json:"received_by,omitempty"`
	ReceivedBy   *UserAccount `gorm:"foreignKey:ReceivedByID" json:"-"`
	Fines        []Fine       `gorm:"foreignKey:BorrowID" json:"-"`
}

func (Borrow) TableName() string {
	return "borrows"
}

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
)

// PaymentMethods lists every accepted method, cash first.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodMobileMoney,
}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Electronic reports whether the payment happens outside the front desk.
func (m PaymentMethod) Electronic() bool {
	return m.Valid() && m != PaymentMethodCash
}

// Fine is the penalty for one overdue return. It moves from unpaid to paid exactly once.
type Fine struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	BorrowID      uint            `gorm:"uniqueIndex;not null" json:"borrow_id"`
	Borrow        Borrow          `gorm:"foreignKey:BorrowID" json:"-"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Paid          bool            `gorm:"index;not null;default:false" json:"paid"`
	DateCreated   time.Time       `gorm:"not null" json:"date_created"`
	DatePaid      *time.Time      `json:"date_paid,omitempty"`
	PaymentMethod PaymentMethod   `gorm:"size:20" json:"payment_method,omitempty"`
	TransactionID *string         `gorm:"uniqueIndex;size:64" json:"transaction_id,omitempty"`
	CollectedByID *uint           `json:"collected_by,omitempty"`
	CollectedBy   *UserAccount    `gorm:"foreignKey:CollectedByID" json:"-"`
}

func (Fine) TableName() string {
	return "fines"
}

type Notification struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	UserID   uint        `gorm:"index;not null" json:"user_id"`
	User     UserAccount `gorm:"foreignKey:UserID" json:"-"`
	Message  string      `gorm:"type:text;not null" json:"message"`
	SentDate time.Time   `gorm:"index;not null" json:"sent_date"`
	IsRead   bool        `gorm:"not null;default:false" json:"is_read"`
}

func (Notification) TableName() string {
	return "notifications"
}
