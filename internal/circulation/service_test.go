package circulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database/dbtest"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

var start = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	svc     *Service
	clock   time.Time
	admin   policy.Actor
	member  policy.Actor
	other   policy.Actor
	adminID uint
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t)
	admin := dbtest.CreateUser(t, db, "admin@example.com", entities.UserRoleAdmin)
	member := dbtest.CreateUser(t, db, "member@example.com", entities.UserRoleStudent)
	other := dbtest.CreateUser(t, db, "other@example.com", entities.UserRoleExternal)

	f := &fixture{
		db:      db,
		clock:   start,
		admin:   policy.Actor{UserID: admin.ID, Role: admin.Role},
		member:  policy.Actor{UserID: member.ID, Role: member.Role},
		other:   policy.Actor{UserID: other.ID, Role: other.Role},
		adminID: admin.ID,
	}
	f.svc = NewService(db, Config{
		MaxActiveBorrows: 2,
		LoanPeriodDays:   14,
		Fines:            FinePolicy{PerDay: decimal.RequireFromString("0.50")},
		Location:         time.UTC,
	}, nil)
	f.svc.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *fixture) book(t *testing.T, title string, qty int) *entities.Book {
	return dbtest.CreateBook(t, f.db, f.adminID, title, qty)
}

func (f *fixture) notifications(t *testing.T, userID uint) []entities.Notification {
	var list []entities.Notification
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("id").Find(&list).Error)
	return list
}

func TestConfigFrom(t *testing.T) {
	cfg, err := ConfigFrom(config.Circulation{MaxActiveBorrows: 5, LoanPeriodDays: 14, FinePerDay: "0.50", FineCap: "0"})
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxActiveBorrows)
	assert.True(t, cfg.Fines.PerDay.Equal(decimal.RequireFromString("0.5")))

	_, err = ConfigFrom(config.Circulation{MaxActiveBorrows: 0, LoanPeriodDays: 14, FinePerDay: "0.50"})
	assert.Error(t, err)

	_, err = ConfigFrom(config.Circulation{MaxActiveBorrows: 5, LoanPeriodDays: 14, FinePerDay: "x"})
	assert.Error(t, err)
}

func TestBorrow(t *testing.T) {
	ctx := context.Background()

	t.Run("self service borrow", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Middlemarch", 2)

		borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)

		assert.NotZero(t, borrow.ID)
		assert.Equal(t, f.member.UserID, borrow.BorrowedByID)
		assert.Equal(t, f.member.UserID, borrow.GivenByID)
		assert.False(t, borrow.IsReturned)
		assert.True(t, borrow.DueDate.Equal(start.AddDate(0, 0, 14)))
		assert.Equal(t, "Middlemarch", borrow.Book.Title)

		assert.Equal(t, 1, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)

		notes := f.notifications(t, f.member.UserID)
		require.Len(t, notes, 1)
		assert.Equal(t, "You borrowed 'Middlemarch'. Return it by 2024-03-15.", notes[0].Message)
		assert.False(t, notes[0].IsRead)
	})

	t.Run("admin checks a book out for a member", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Emma", 1)

		borrow, err := f.svc.Borrow(ctx, f.admin, book.ID, f.member.UserID, policy.Assisted)
		require.NoError(t, err)
		assert.Equal(t, f.adminID, borrow.GivenByID)
		assert.Equal(t, f.member.UserID, borrow.BorrowedByID)
	})

	t.Run("member cannot borrow for someone else", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Emma", 1)

		_, err := f.svc.Borrow(ctx, f.member, book.ID, f.other.UserID, policy.SelfService)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.Equal(t, 1, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)
	})

	t.Run("member cannot use the assisted channel", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Emma", 1)

		_, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.Assisted)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("out of stock", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Persuasion", 1)

		_, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)

		_, err = f.svc.Borrow(ctx, f.other, book.ID, f.other.UserID, policy.SelfService)
		assert.ErrorIs(t, err, ErrOutOfStock)
		assert.Equal(t, 0, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)
		assert.Empty(t, f.notifications(t, f.other.UserID))
	})

	t.Run("borrow limit", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Dracula", 5)

		for i := 0; i < 2; i++ {
			_, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
			require.NoError(t, err)
		}

		_, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		assert.ErrorIs(t, err, ErrBorrowLimitReached)
		assert.Equal(t, 3, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)
	})

	t.Run("unknown book", func(t *testing.T) {
		f := setupTestDB(t)

		_, err := f.svc.Borrow(ctx, f.member, 9999, f.member.UserID, policy.SelfService)
		assert.ErrorIs(t, err, apperr.NotFound("book"))
	})

	t.Run("unknown borrower", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Emma", 1)

		_, err := f.svc.Borrow(ctx, f.admin, book.ID, 9999, policy.Assisted)
		assert.ErrorIs(t, err, apperr.NotFound("user"))
	})

	t.Run("inactive borrower", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Emma", 1)
		require.NoError(t, f.db.Model(&entities.UserAccount{}).Where("id = ?", f.member.UserID).Update("is_active", false).Error)

		_, err := f.svc.Borrow(ctx, f.admin, book.ID, f.member.UserID, policy.Assisted)
		assert.ErrorIs(t, err, ErrBorrowerInactive)
		assert.Equal(t, 1, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)
	})
}

func TestBorrow_ConcurrentLastCopy(t *testing.T) {
	f := setupTestDB(t)
	book := f.book(t, "The Last Copy", 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	borrowers := []policy.Actor{f.member, f.other}

	for i, actor := range borrowers {
		wg.Add(1)
		go func(i int, actor policy.Actor) {
			defer wg.Done()
			_, errs[i] = f.svc.Borrow(ctx, actor, book.ID, actor.UserID, policy.SelfService)
		}(i, actor)
	}
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)

	var open int64
	require.NoError(t, f.db.Model(&entities.Borrow{}).Where("book_id = ?", book.ID).Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("on time", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Middlemarch", 1)
		borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)

		f.clock = start.AddDate(0, 0, 14).Add(8 * time.Hour) // later on the due date
		result, err := f.svc.Return(ctx, f.admin, borrow.ID)
		require.NoError(t, err)

		assert.Nil(t, result.Fine)
		assert.True(t, result.Borrow.IsReturned)
		require.NotNil(t, result.Borrow.ReceivedByID)
		assert.Equal(t, f.adminID, *result.Borrow.ReceivedByID)

		assert.Equal(t, 1, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)

		var fines int64
		require.NoError(t, f.db.Model(&entities.Fine{}).Count(&fines).Error)
		assert.Zero(t, fines)

		notes := f.notifications(t, f.member.UserID)
		require.Len(t, notes, 2)
		assert.Equal(t, "You returned 'Middlemarch' on 2024-03-15.", notes[1].Message)
	})

	t.Run("overdue creates one fine", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Middlemarch", 1)
		borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)

		f.clock = start.AddDate(0, 0, 20)
		result, err := f.svc.Return(ctx, f.admin, borrow.ID)
		require.NoError(t, err)

		require.NotNil(t, result.Fine)
		assert.True(t, result.Fine.Amount.Equal(decimal.RequireFromString("3.00")), "got %s", result.Fine.Amount)
		assert.False(t, result.Fine.Paid)

		var stored entities.Fine
		require.NoError(t, f.db.Where("borrow_id = ?", borrow.ID).First(&stored).Error)
		assert.True(t, stored.Amount.Equal(decimal.RequireFromString("3")))

		notes := f.notifications(t, f.member.UserID)
		require.Len(t, notes, 2)
		assert.Equal(t, "You returned 'Middlemarch' on 2024-03-21. A fine of 3.00 has been charged.", notes[1].Message)
	})

	t.Run("double return", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Middlemarch", 2)
		borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)

		f.clock = start.AddDate(0, 0, 30)
		_, err = f.svc.Return(ctx, f.admin, borrow.ID)
		require.NoError(t, err)

		_, err = f.svc.Return(ctx, f.admin, borrow.ID)
		assert.ErrorIs(t, err, ErrAlreadyReturned)

		assert.Equal(t, 2, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)
		var fines int64
		require.NoError(t, f.db.Model(&entities.Fine{}).Count(&fines).Error)
		assert.Equal(t, int64(1), fines)
		assert.Len(t, f.notifications(t, f.member.UserID), 2)
	})

	t.Run("members cannot receive returns", func(t *testing.T) {
		f := setupTestDB(t)
		book := f.book(t, "Middlemarch", 1)
		borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)

		_, err = f.svc.Return(ctx, f.member, borrow.ID)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("unknown borrow", func(t *testing.T) {
		f := setupTestDB(t)

		_, err := f.svc.Return(ctx, f.admin, 12345)
		assert.ErrorIs(t, err, apperr.NotFound("borrow"))
	})
}

func TestReturn_RollsBackWhenFineInsertFails(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	book := f.book(t, "Middlemarch", 1)
	borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
	require.NoError(t, err)

	injected := errors.New("disk full")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_fines", func(tx *gorm.DB) {
		if tx.Statement.Table == "fines" {
			_ = tx.AddError(injected)
		}
	}))

	f.clock = start.AddDate(0, 0, 20)
	_, err = f.svc.Return(ctx, f.admin, borrow.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, injected)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	var stored entities.Borrow
	require.NoError(t, f.db.First(&stored, borrow.ID).Error)
	assert.False(t, stored.IsReturned)
	assert.Nil(t, stored.ReturnDate)
	assert.Equal(t, 0, dbtest.ReloadBook(t, f.db, book.ID).CurrentQuantity)
	assert.Len(t, f.notifications(t, f.member.UserID), 1)
}

func TestPayFine(t *testing.T) {
	ctx := context.Background()

	overdueFine := func(t *testing.T, f *fixture) *entities.Fine {
		book := f.book(t, "Middlemarch", 1)
		borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
		require.NoError(t, err)
		f.clock = start.AddDate(0, 0, 16)
		result, err := f.svc.Return(ctx, f.admin, borrow.ID)
		require.NoError(t, err)
		require.NotNil(t, result.Fine)
		return result.Fine
	}

	t.Run("member pays by card", func(t *testing.T) {
		f := setupTestDB(t)
		fine := overdueFine(t, f)

		paid, err := f.svc.PayFine(ctx, f.member, fine.ID, entities.PaymentMethodCard)
		require.NoError(t, err)

		assert.True(t, paid.Paid)
		assert.Equal(t, entities.PaymentMethodCard, paid.PaymentMethod)
		require.NotNil(t, paid.TransactionID)
		assert.Len(t, *paid.TransactionID, 32)
		assert.Nil(t, paid.CollectedByID)
		require.NotNil(t, paid.DatePaid)
	})

	t.Run("admin collects cash", func(t *testing.T) {
		f := setupTestDB(t)
		fine := overdueFine(t, f)

		paid, err := f.svc.PayFine(ctx, f.admin, fine.ID, entities.PaymentMethodCash)
		require.NoError(t, err)
		assert.Nil(t, paid.TransactionID)
		require.NotNil(t, paid.CollectedByID)
		assert.Equal(t, f.adminID, *paid.CollectedByID)
	})

	t.Run("member cannot pay cash", func(t *testing.T) {
		f := setupTestDB(t)
		fine := overdueFine(t, f)

		_, err := f.svc.PayFine(ctx, f.member, fine.ID, entities.PaymentMethodCash)
		require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "in cash in person")
	})

	t.Run("someone else's fine", func(t *testing.T) {
		f := setupTestDB(t)
		fine := overdueFine(t, f)

		_, err := f.svc.PayFine(ctx, f.other, fine.ID, entities.PaymentMethodMobileMoney)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("double payment", func(t *testing.T) {
		f := setupTestDB(t)
		fine := overdueFine(t, f)

		first, err := f.svc.PayFine(ctx, f.member, fine.ID, entities.PaymentMethodCard)
		require.NoError(t, err)

		_, err = f.svc.PayFine(ctx, f.member, fine.ID, entities.PaymentMethodMobileMoney)
		assert.ErrorIs(t, err, ErrAlreadyPaid)

		var stored entities.Fine
		require.NoError(t, f.db.First(&stored, fine.ID).Error)
		assert.Equal(t, entities.PaymentMethodCard, stored.PaymentMethod)
		assert.Equal(t, *first.TransactionID, *stored.TransactionID)
	})

	t.Run("invalid method", func(t *testing.T) {
		f := setupTestDB(t)
		fine := overdueFine(t, f)

		_, err := f.svc.PayFine(ctx, f.member, fine.ID, entities.PaymentMethod("cheque"))
		assert.ErrorIs(t, err, ErrInvalidMethod)
	})

	t.Run("unknown fine", func(t *testing.T) {
		f := setupTestDB(t)

		_, err := f.svc.PayFine(ctx, f.member, 777, entities.PaymentMethodCard)
		assert.ErrorIs(t, err, apperr.NotFound("fine"))
	})
}

func TestLedgerReads(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	late := f.book(t, "Late Book", 1)
	current := f.book(t, "Current Book", 1)

	first, err := f.svc.Borrow(ctx, f.member, late.ID, f.member.UserID, policy.SelfService)
	require.NoError(t, err)
	f.clock = start.AddDate(0, 0, 1)
	_, err = f.svc.Borrow(ctx, f.member, current.ID, f.member.UserID, policy.SelfService)
	require.NoError(t, err)
	f.clock = start.AddDate(0, 0, 18)
	returned, err := f.svc.Return(ctx, f.admin, first.ID)
	require.NoError(t, err)

	t.Run("open borrows only by default", func(t *testing.T) {
		list, err := f.svc.Borrows(ctx, f.member, f.member.UserID, false)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Current Book", list[0].Book.Title)
	})

	t.Run("including returned", func(t *testing.T) {
		list, err := f.svc.Borrows(ctx, f.member, f.member.UserID, true)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("other members cannot look", func(t *testing.T) {
		_, err := f.svc.Borrows(ctx, f.other, f.member.UserID, true)
		assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	})

	t.Run("admin can look", func(t *testing.T) {
		list, err := f.svc.Borrows(ctx, f.admin, f.member.UserID, true)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("single borrow of another owner is not found", func(t *testing.T) {
		_, err := f.svc.BorrowFor(ctx, f.other, f.other.UserID, first.ID)
		assert.ErrorIs(t, err, apperr.NotFound("borrow"))

		b, err := f.svc.BorrowFor(ctx, f.member, f.member.UserID, first.ID)
		require.NoError(t, err)
		assert.True(t, b.IsReturned)
		require.Len(t, b.Fines, 1)
	})

	t.Run("fines with totals", func(t *testing.T) {
		list, summary, err := f.svc.Fines(ctx, f.member, f.member.UserID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Late Book", list[0].Borrow.Book.Title)
		assert.True(t, summary.Unpaid.Equal(decimal.RequireFromString("2")), "got %s", summary.Unpaid)
		assert.True(t, summary.Paid.IsZero())

		_, err = f.svc.PayFine(ctx, f.member, returned.Fine.ID, entities.PaymentMethodCard)
		require.NoError(t, err)

		_, summary, err = f.svc.Fines(ctx, f.member, f.member.UserID)
		require.NoError(t, err)
		assert.True(t, summary.Paid.Equal(decimal.RequireFromString("2")))
		assert.True(t, summary.Unpaid.IsZero())
	})

	t.Run("single fine", func(t *testing.T) {
		fine, err := f.svc.FineFor(ctx, f.member, f.member.UserID, returned.Fine.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, fine.BorrowID)

		_, err = f.svc.FineFor(ctx, f.other, f.other.UserID, returned.Fine.ID)
		assert.ErrorIs(t, err, apperr.NotFound("fine"))
	})
}

func TestNotifications(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	book := f.book(t, "Emma", 1)

	_, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
	require.NoError(t, err)

	list, err := f.svc.Notifications(ctx, f.member, true)
	require.NoError(t, err)
	require.Len(t, list, 1)

	err = f.svc.MarkNotificationRead(ctx, f.other, list[0].ID)
	assert.ErrorIs(t, err, apperr.NotFound("notification"))

	require.NoError(t, f.svc.MarkNotificationRead(ctx, f.member, list[0].ID))

	unread, err := f.svc.Notifications(ctx, f.member, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := f.svc.Notifications(ctx, f.member, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_LogsLifecycle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	f := setupTestDB(t)
	f.svc.logger = zap.New(core)
	ctx := context.Background()
	book := f.book(t, "Emma", 1)

	borrow, err := f.svc.Borrow(ctx, f.member, book.ID, f.member.UserID, policy.SelfService)
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, f.admin, borrow.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("book borrowed").Len())
	assert.Equal(t, 1, logs.FilterMessage("book returned").Len())
}
