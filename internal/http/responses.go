package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrlokans/librarian/internal/entities"
)

// BookResponse is a catalog entry with its category name.
type BookResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	CategoryID       uint      `json:"category_id"`
	Category         string    `json:"category"`
	ISBN             string    `json:"isbn"`
	Location         string    `json:"location"`
	OriginalQuantity int       `json:"original_quantity"`
	CurrentQuantity  int       `json:"current_quantity"`
	Available        bool      `json:"available"`
	DateAdded        time.Time `json:"date_added"`
}

func newBookResponse(b *entities.Book) BookResponse {
	return BookResponse{
		ID:               b.ID,
		Title:            b.Title,
		Author:           b.Author,
		CategoryID:       b.CategoryID,
		Category:         b.Category.Name,
		ISBN:             b.ISBN,
		Location:         b.Location,
		OriginalQuantity: b.OriginalQuantity,
		CurrentQuantity:  b.CurrentQuantity,
		Available:        b.Available(),
		DateAdded:        b.DateAdded,
	}
}

func newBookResponses(list []entities.Book) []BookResponse {
	out := make([]BookResponse, 0, len(list))
	for i := range list {
		out = append(out, newBookResponse(&list[i]))
	}
	return out
}

// FineResponse is a fine with the title of the book it was charged for.
type FineResponse struct {
	ID            uint                   `json:"id"`
	BorrowID      uint                   `json:"borrow_id"`
	BookTitle     string                 `json:"book_title,omitempty"`
	Amount        decimal.Decimal        `json:"amount"`
	Paid          bool                   `json:"paid"`
	DateCreated   time.Time              `json:"date_created"`
	DatePaid      *time.Time             `json:"date_paid,omitempty"`
	PaymentMethod entities.PaymentMethod `json:"payment_method,omitempty"`
	TransactionID *string                `json:"transaction_id,omitempty"`
	CollectedBy   *uint                  `json:"collected_by,omitempty"`
}

func newFineResponse(f *entities.Fine) FineResponse {
	return FineResponse{
		ID:            f.ID,
		BorrowID:      f.BorrowID,
		BookTitle:     f.Borrow.Book.Title,
		Amount:        f.Amount,
		Paid:          f.Paid,
		DateCreated:   f.DateCreated,
		DatePaid:      f.DatePaid,
		PaymentMethod: f.PaymentMethod,
		TransactionID: f.TransactionID,
		CollectedBy:   f.CollectedByID,
	}
}

// BorrowResponse is a loan with its book title and any fine.
type BorrowResponse struct {
	ID         uint           `json:"id"`
	BookID     uint           `json:"book_id"`
	BookTitle  string         `json:"book_title"`
	BorrowedBy uint           `json:"borrowed_by"`
	GivenBy    uint           `json:"given_by"`
	BorrowDate time.Time      `json:"borrow_date"`
	DueDate    time.Time      `json:"due_date"`
	IsReturned bool           `json:"is_returned"`
	ReturnDate *time.Time     `json:"return_date,omitempty"`
	ReceivedBy *uint          `json:"received_by,omitempty"`
	Fines      []FineResponse `json:"fines"`
}

func newBorrowResponse(b *entities.Borrow) BorrowResponse {
	fines := make([]FineResponse, 0, len(b.Fines))
	for i := range b.Fines {
		fine := newFineResponse(&b.Fines[i])
		fine.BookTitle = b.Book.Title
		fines = append(fines, fine)
	}
	return BorrowResponse{
		ID:         b.ID,
		BookID:     b.BookID,
		BookTitle:  b.Book.Title,
		BorrowedBy: b.BorrowedByID,
		GivenBy:    b.GivenByID,
		BorrowDate: b.BorrowDate,
		DueDate:    b.DueDate,
		IsReturned: b.IsReturned,
		ReturnDate: b.ReturnDate,
		ReceivedBy: b.ReceivedByID,
		Fines:      fines,
	}
}

func newBorrowResponses(list []entities.Borrow) []BorrowResponse {
	out := make([]BorrowResponse, 0, len(list))
	for i := range list {
		out = append(out, newBorrowResponse(&list[i]))
	}
	return out
}

// UserResponse is an account without credentials.
type UserResponse struct {
	ID          uint              `json:"id"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Role        entities.UserRole `json:"role"`
	IsActive    bool              `json:"is_active"`
	LastLoginAt *time.Time        `json:"last_login_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func newUserResponse(u *entities.UserAccount) UserResponse {
	return UserResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Name:        u.FullName(),
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
