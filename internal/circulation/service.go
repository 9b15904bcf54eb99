// Package circulation runs the borrow, return and fine-payment lifecycle.
//
// Each mutating operation is one database transaction. Repositories are
// built on the transaction handle, every state transition is a guarded
// UPDATE whose RowsAffected is checked, and any failure rolls back the
// whole unit: a return never leaves the borrow closed without the copy
// back on the shelf, its fine, and its notification.
package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/borrows"
	"github.com/mrlokans/librarian/internal/database/fines"
	"github.com/mrlokans/librarian/internal/database/notifications"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

const dateLayout = "2006-01-02"

var (
	ErrOutOfStock         = apperr.Conflict("out_of_stock", "no copies of this book are available")
	ErrBorrowLimitReached = apperr.Conflict("borrow_limit_reached", "the borrower has reached the maximum number of active borrows")
	ErrAlreadyReturned    = apperr.Conflict("already_returned", "this book has already been returned")
	ErrAlreadyPaid        = apperr.Conflict("already_paid", "this fine has already been paid")
	ErrBorrowerInactive   = apperr.Conflict("borrower_inactive", "the borrower's account is deactivated")
	ErrInvalidMethod      = apperr.Validation("invalid_payment_method", "payment method must be one of cash, card, mobile_money")
)

// Config holds the lending rules.
type Config struct {
	MaxActiveBorrows int
	LoanPeriodDays   int
	Fines            FinePolicy
	// Location decides which calendar day a timestamp falls on. Nil means time.Local.
	Location *time.Location
}

// ConfigFrom parses the circulation section of the application config.
func ConfigFrom(cfg config.Circulation) (Config, error) {
	finePolicy, err := NewFinePolicy(cfg.FinePerDay, cfg.FineCap)
	if err != nil {
		return Config{}, err
	}
	if cfg.MaxActiveBorrows <= 0 {
		return Config{}, fmt.Errorf("max active borrows must be positive, got %d", cfg.MaxActiveBorrows)
	}
	if cfg.LoanPeriodDays <= 0 {
		return Config{}, fmt.Errorf("loan period must be positive, got %d days", cfg.LoanPeriodDays)
	}
	return Config{
		MaxActiveBorrows: cfg.MaxActiveBorrows,
		LoanPeriodDays:   cfg.LoanPeriodDays,
		Fines:            finePolicy,
		Location:         time.Local,
	}, nil
}

// ReturnResult is a closed borrow and the fine it produced, if any.
type ReturnResult struct {
	Borrow *entities.Borrow
	Fine   *entities.Fine
}

// FineSummary totals a member's fines.
type FineSummary struct {
	Paid   decimal.Decimal `json:"paid"`
	Unpaid decimal.Decimal `json:"unpaid"`
}

type Service struct {
	db     *gorm.DB
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

func NewService(db *gorm.DB, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		db:     db,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Borrow takes one copy of a book off the shelf for borrowerID.
func (s *Service) Borrow(ctx context.Context, actor policy.Actor, bookID, borrowerID uint, channel policy.Channel) (*entities.Borrow, error) {
	if err := policy.AuthorizeBorrow(actor, borrowerID, channel).Err(); err != nil {
		return nil, err
	}

	now := s.now()
	var borrow *entities.Borrow

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		borrower, err := users.NewRepository(tx).GetByIDForUpdate(borrowerID)
		if err != nil {
			return lookupError("user", "load borrower", err)
		}
		if !borrower.IsActive {
			return ErrBorrowerInactive
		}

		ledger := borrows.NewRepository(tx)
		open, err := ledger.CountOpenForBorrower(borrowerID)
		if err != nil {
			return apperr.Store("count open borrows", err)
		}
		if open >= int64(s.cfg.MaxActiveBorrows) {
			return ErrBorrowLimitReached.WithMessage("the borrower already has %d active borrows, the limit is %d", open, s.cfg.MaxActiveBorrows)
		}

		catalog := books.NewRepository(tx)
		book, err := catalog.GetByIDForUpdate(bookID)
		if err != nil {
			return lookupError("book", "load book", err)
		}

		taken, err := catalog.DecrementAvailable(bookID)
		if err != nil {
			return apperr.Store("take copy off shelf", err)
		}
		if !taken {
			return ErrOutOfStock
		}
		book.CurrentQuantity--

		borrow = &entities.Borrow{
			BookID:       bookID,
			BorrowedByID: borrowerID,
			GivenByID:    actor.UserID,
			BorrowDate:   now,
			DueDate:      now.AddDate(0, 0, s.cfg.LoanPeriodDays),
		}
		if err := ledger.Create(borrow); err != nil {
			return apperr.Store("create borrow", err)
		}
		borrow.Book = *book

		msg := fmt.Sprintf("You borrowed '%s'. Return it by %s.", book.Title, s.formatDate(borrow.DueDate))
		return s.notify(tx, borrowerID, msg, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("book borrowed",
		zap.Uint("borrow_id", borrow.ID),
		zap.Uint("book_id", bookID),
		zap.Uint("borrower_id", borrowerID),
		zap.Uint("given_by", actor.UserID),
	)
	return borrow, nil
}

// Return closes an open borrow, puts the copy back and charges a fine when
// the book comes back after its due date.
func (s *Service) Return(ctx context.Context, actor policy.Actor, borrowID uint) (*ReturnResult, error) {
	if err := policy.AuthorizeReturn(actor).Err(); err != nil {
		return nil, err
	}

	now := s.now()
	result := &ReturnResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := borrows.NewRepository(tx)
		borrow, err := ledger.GetByID(borrowID)
		if err != nil {
			return lookupError("borrow", "load borrow", err)
		}
		if borrow.IsReturned {
			return ErrAlreadyReturned
		}

		closed, err := ledger.MarkReturned(borrowID, actor.UserID, now)
		if err != nil {
			return apperr.Store("mark borrow returned", err)
		}
		if !closed {
			return ErrAlreadyReturned
		}
		receivedBy := actor.UserID
		borrow.IsReturned = true
		borrow.ReturnDate = &now
		borrow.ReceivedByID = &receivedBy
		result.Borrow = borrow

		shelved, err := books.NewRepository(tx).IncrementAvailable(borrow.BookID)
		if err != nil {
			return apperr.Store("return copy to shelf", err)
		}
		if !shelved {
			return apperr.Store("return copy to shelf",
				fmt.Errorf("book %d already has all copies on the shelf", borrow.BookID))
		}

		msg := fmt.Sprintf("You returned '%s' on %s.", borrow.Book.Title, s.formatDate(now))

		if days := DaysOverdue(borrow.DueDate, now, s.cfg.Location); days > 0 {
			fine := &entities.Fine{
				BorrowID:    borrowID,
				Amount:      s.cfg.Fines.Amount(days),
				DateCreated: now,
			}
			if err := fines.NewRepository(tx).Create(fine); err != nil {
				return apperr.Store("create fine", err)
			}
			result.Fine = fine
			borrow.Fines = append(borrow.Fines, *fine)
			msg += fmt.Sprintf(" A fine of %s has been charged.", fine.Amount.StringFixed(2))
		}

		return s.notify(tx, borrow.BorrowedByID, msg, now)
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.Uint("borrow_id", borrowID),
		zap.Uint("book_id", result.Borrow.BookID),
		zap.Uint("received_by", actor.UserID),
	}
	if result.Fine != nil {
		fields = append(fields, zap.Uint("fine_id", result.Fine.ID), zap.String("amount", result.Fine.Amount.StringFixed(2)))
	}
	s.logger.Info("book returned", fields...)

	return result, nil
}

// PayFine settles an unpaid fine.
func (s *Service) PayFine(ctx context.Context, actor policy.Actor, fineID uint, method entities.PaymentMethod) (*entities.Fine, error) {
	if !method.Valid() {
		return nil, ErrInvalidMethod
	}
	if err := policy.AuthorizePaymentMethod(actor, method).Err(); err != nil {
		return nil, err
	}

	now := s.now()
	var fine *entities.Fine

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := fines.NewRepository(tx)

		var err error
		fine, err = repo.GetByID(fineID)
		if err != nil {
			return lookupError("fine", "load fine", err)
		}
		if fine.Paid {
			return ErrAlreadyPaid
		}
		if err := policy.AuthorizeFinePayment(actor, method, fine.Borrow.BorrowedByID).Err(); err != nil {
			return err
		}

		payment := fines.Payment{Method: method, PaidAt: now}
		if method.Electronic() {
			txID := strings.ReplaceAll(uuid.NewString(), "-", "")
			payment.TransactionID = &txID
		}
		if actor.IsAdmin() {
			collector := actor.UserID
			payment.CollectedByID = &collector
		}

		paid, err := repo.MarkPaid(fineID, payment)
		if err != nil {
			return apperr.Store("mark fine paid", err)
		}
		if !paid {
			return ErrAlreadyPaid
		}

		fine.Paid = true
		fine.DatePaid = &now
		fine.PaymentMethod = method
		fine.TransactionID = payment.TransactionID
		fine.CollectedByID = payment.CollectedByID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fine paid",
		zap.Uint("fine_id", fineID),
		zap.String("method", string(method)),
		zap.Uint("paid_by", actor.UserID),
	)
	return fine, nil
}

// Borrows lists a member's borrows. Returned ones are included on request.
func (s *Service) Borrows(ctx context.Context, actor policy.Actor, ownerID uint, includeReturned bool) ([]entities.Borrow, error) {
	if err := policy.AuthorizeLedgerView(actor, ownerID).Err(); err != nil {
		return nil, err
	}
	list, err := borrows.NewRepository(s.db.WithContext(ctx)).ListForBorrower(ownerID, includeReturned)
	if err != nil {
		return nil, apperr.Store("list borrows", err)
	}
	return list, nil
}

// BorrowFor returns one of the owner's borrows. Someone else's borrow is reported as not found.
func (s *Service) BorrowFor(ctx context.Context, actor policy.Actor, ownerID, borrowID uint) (*entities.Borrow, error) {
	if err := policy.AuthorizeLedgerView(actor, ownerID).Err(); err != nil {
		return nil, err
	}
	borrow, err := borrows.NewRepository(s.db.WithContext(ctx)).GetForBorrower(borrowID, ownerID)
	if err != nil {
		return nil, lookupError("borrow", "load borrow", err)
	}
	return borrow, nil
}

// Fines lists a member's fines with paid and unpaid totals.
func (s *Service) Fines(ctx context.Context, actor policy.Actor, ownerID uint) ([]entities.Fine, FineSummary, error) {
	summary := FineSummary{Paid: decimal.Zero, Unpaid: decimal.Zero}
	if err := policy.AuthorizeLedgerView(actor, ownerID).Err(); err != nil {
		return nil, summary, err
	}

	list, err := fines.NewRepository(s.db.WithContext(ctx)).ListForBorrower(ownerID)
	if err != nil {
		return nil, summary, apperr.Store("list fines", err)
	}
	for _, f := range list {
		if f.Paid {
			summary.Paid = summary.Paid.Add(f.Amount)
		} else {
			summary.Unpaid = summary.Unpaid.Add(f.Amount)
		}
	}
	return list, summary, nil
}

func (s *Service) FineFor(ctx context.Context, actor policy.Actor, ownerID, fineID uint) (*entities.Fine, error) {
	if err := policy.AuthorizeLedgerView(actor, ownerID).Err(); err != nil {
		return nil, err
	}
	fine, err := fines.NewRepository(s.db.WithContext(ctx)).GetForBorrower(fineID, ownerID)
	if err != nil {
		return nil, lookupError("fine", "load fine", err)
	}
	return fine, nil
}

// Notifications returns the actor's own notifications, newest first.
func (s *Service) Notifications(ctx context.Context, actor policy.Actor, unreadOnly bool) ([]entities.Notification, error) {
	list, err := notifications.NewRepository(s.db.WithContext(ctx)).ListForUser(actor.UserID, unreadOnly)
	if err != nil {
		return nil, apperr.Store("list notifications", err)
	}
	return list, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, actor policy.Actor, id uint) error {
	ok, err := notifications.NewRepository(s.db.WithContext(ctx)).MarkRead(id, actor.UserID)
	if err != nil {
		return apperr.Store("mark notification read", err)
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *Service) notify(tx *gorm.DB, userID uint, message string, at time.Time) error {
	n := &entities.Notification{UserID: userID, Message: message, SentDate: at}
	if err := notifications.NewRepository(tx).Create(n); err != nil {
		return apperr.Store("create notification", err)
	}
	return nil
}

func (s *Service) formatDate(t time.Time) string {
	return t.In(s.cfg.Location).Format(dateLayout)
}

// lookupError maps a missing row to NotFound and anything else to a store error.
func lookupError(resource, op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return apperr.Store(op, err)
}
