package http

import (
	"context"
	"time"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	auditdb "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

// This file consolidates the service interfaces used by HTTP controllers.
// Each controller depends on exactly one of them so it can be tested with a
// hand-written fake.

// AccountService is the account surface used by AuthController and UsersController.
type AccountService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*entities.UserAccount, error)
	Login(ctx context.Context, email, password string) (*entities.UserAccount, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	MakeAdmin(ctx context.Context, actor policy.Actor, email string) error
	SetActive(ctx context.Context, actor policy.Actor, email string, active bool) error
	ListUsers(ctx context.Context, actor policy.Actor) ([]entities.UserAccount, error)
	GetUser(ctx context.Context, actor policy.Actor, id uint) (*entities.UserAccount, error)
}

// CatalogService manages books and categories.
type CatalogService interface {
	CreateBook(ctx context.Context, actor policy.Actor, input catalog.NewBook) (*entities.Book, error)
	GetBook(ctx context.Context, id uint) (*entities.Book, error)
	ListBooks(ctx context.Context, actor policy.Actor, filter books.Filter) ([]entities.Book, error)
	UpdateBook(ctx context.Context, actor policy.Actor, id uint, patch catalog.BookPatch) (*entities.Book, error)
	DeleteBook(ctx context.Context, actor policy.Actor, id uint) error
	ListCategories(ctx context.Context) ([]entities.Category, error)
	GetCategory(ctx context.Context, id uint) (*entities.Category, error)
	CreateCategory(ctx context.Context, actor policy.Actor, name string) (*entities.Category, error)
}

// CirculationService runs the borrow, return and fine lifecycle.
type CirculationService interface {
	Borrow(ctx context.Context, actor policy.Actor, bookID, borrowerID uint, channel policy.Channel) (*entities.Borrow, error)
	Return(ctx context.Context, actor policy.Actor, borrowID uint) (*circulation.ReturnResult, error)
	PayFine(ctx context.Context, actor policy.Actor, fineID uint, method entities.PaymentMethod) (*entities.Fine, error)
	Borrows(ctx context.Context, actor policy.Actor, ownerID uint, includeReturned bool) ([]entities.Borrow, error)
	BorrowFor(ctx context.Context, actor policy.Actor, ownerID, borrowID uint) (*entities.Borrow, error)
	Fines(ctx context.Context, actor policy.Actor, ownerID uint) ([]entities.Fine, circulation.FineSummary, error)
	FineFor(ctx context.Context, actor policy.Actor, ownerID, fineID uint) (*entities.Fine, error)
	Notifications(ctx context.Context, actor policy.Actor, unreadOnly bool) ([]entities.Notification, error)
	MarkNotificationRead(ctx context.Context, actor policy.Actor, id uint) error
}

// AuditLogger records successful actions. Implementations must not block the request.
type AuditLogger interface {
	LogCirculation(actorID uint, action, description string, borrowID uint, metadata map[string]any)
	LogPayment(actorID, fineID uint, method entities.PaymentMethod, amount string)
	LogCatalog(actorID uint, action, entityType string, entityID uint, description string)
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
	LogUserAdmin(actorID uint, action, targetEmail string)
}

// AuditReader pages through the audit trail.
type AuditReader interface {
	Find(q auditdb.Query) ([]entities.AuditEvent, int64, error)
}

// LoginLimiter throttles repeated login failures per client and email.
type LoginLimiter interface {
	Allow(ip, email string) (bool, time.Duration)
	RecordFailure(ip, email string) (bool, time.Duration)
	RecordSuccess(ip, email string)
}

type nopAudit struct{}

func (nopAudit) LogCirculation(uint, string, string, uint, map[string]any) {}
func (nopAudit) LogPayment(uint, uint, entities.PaymentMethod, string) {}
func (nopAudit) LogCatalog(uint, string, string, uint, string) {}
func (nopAudit) LogAuth(uint, string, string, string, bool) {}
func (nopAudit) LogUserAdmin(uint, string, string) {}

type nopLimiter struct{}

func (nopLimiter) Allow(string, string) (bool, time.Duration)         { return true, 0 }
func (nopLimiter) RecordFailure(string, string) (bool, time.Duration) { return false, 0 }
func (nopLimiter) RecordSuccess(string, string)                       {}
