package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

// withActor stands in for the auth middleware.
func withActor(id uint, role entities.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, id)
		c.Set(auth.ContextKeyRole, role)
		c.Next()
	}
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type auditRecord struct {
	Kind     string
	ActorID  uint
	Action   string
	EntityID uint
	Success  bool
}

type recordingAudit struct {
	mu      sync.Mutex
	records []auditRecord
}

func (r *recordingAudit) add(rec auditRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recordingAudit) all() []auditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auditRecord(nil), r.records...)
}

func (r *recordingAudit) LogCirculation(actorID uint, action, _ string, borrowID uint, _ map[string]any) {
	r.add(auditRecord{Kind: "circulation", ActorID: actorID, Action: action, EntityID: borrowID, Success: true})
}

func (r *recordingAudit) LogPayment(actorID, fineID uint, _ entities.PaymentMethod, _ string) {
	r.add(auditRecord{Kind: "payment", ActorID: actorID, Action: "fine_paid", EntityID: fineID, Success: true})
}

func (r *recordingAudit) LogCatalog(actorID uint, action, _ string, entityID uint, _ string) {
	r.add(auditRecord{Kind: "catalog", ActorID: actorID, Action: action, EntityID: entityID, Success: true})
}

func (r *recordingAudit) LogAuth(userID uint, action string, _, _ string, success bool) {
	r.add(auditRecord{Kind: "auth", ActorID: userID, Action: action, Success: success})
}

func (r *recordingAudit) LogUserAdmin(actorID uint, action, _ string) {
	r.add(auditRecord{Kind: "user_admin", ActorID: actorID, Action: action, Success: true})
}

type fakeCatalog struct {
	books      []entities.Book
	lastFilter books.Filter
	lastActor  policy.Actor
	lastNew    catalog.NewBook
	lastPatch  catalog.BookPatch
	err        error
}

func (f *fakeCatalog) CreateBook(_ context.Context, actor policy.Actor, input catalog.NewBook) (*entities.Book, error) {
	f.lastActor, f.lastNew = actor, input
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Book{ID: 42, Title: input.Title, OriginalQuantity: input.Quantity, CurrentQuantity: input.Quantity}, nil
}

func (f *fakeCatalog) GetBook(_ context.Context, id uint) (*entities.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Book{ID: id, Title: "Dune", OriginalQuantity: 2, CurrentQuantity: 2, Category: entities.Category{Name: "Fiction"}}, nil
}

func (f *fakeCatalog) ListBooks(_ context.Context, actor policy.Actor, filter books.Filter) ([]entities.Book, error) {
	f.lastActor, f.lastFilter = actor, filter
	return f.books, f.err
}

func (f *fakeCatalog) UpdateBook(_ context.Context, actor policy.Actor, id uint, patch catalog.BookPatch) (*entities.Book, error) {
	f.lastActor, f.lastPatch = actor, patch
	if f.err != nil {
		return nil, f.err
	}
	if patch.IsEmpty() {
		return nil, catalog.ErrNoChanges
	}
	return &entities.Book{ID: id, Title: "Dune"}, nil
}

func (f *fakeCatalog) DeleteBook(_ context.Context, actor policy.Actor, _ uint) error {
	f.lastActor = actor
	return f.err
}

func (f *fakeCatalog) ListCategories(context.Context) ([]entities.Category, error) {
	return []entities.Category{{ID: 1, Name: "Fiction"}}, f.err
}

func (f *fakeCatalog) GetCategory(_ context.Context, id uint) (*entities.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Category{ID: id, Name: "Fiction"}, nil
}

func (f *fakeCatalog) CreateCategory(_ context.Context, actor policy.Actor, name string) (*entities.Category, error) {
	f.lastActor = actor
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Category{ID: 9, Name: name}, nil
}

type borrowCall struct {
	Actor      policy.Actor
	BookID     uint
	BorrowerID uint
	Channel    policy.Channel
}

type fakeCirculation struct {
	borrowCalls   []borrowCall
	returnResult  *circulation.ReturnResult
	paidMethod    entities.PaymentMethod
	ownerID       uint
	includeReturn bool
	unreadOnly    bool
	err           error
}

func (f *fakeCirculation) Borrow(_ context.Context, actor policy.Actor, bookID, borrowerID uint, channel policy.Channel) (*entities.Borrow, error) {
	f.borrowCalls = append(f.borrowCalls, borrowCall{actor, bookID, borrowerID, channel})
	if f.err != nil {
		return nil, f.err
	}
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &entities.Borrow{
		ID: 5, BookID: bookID, BorrowedByID: borrowerID, GivenByID: actor.UserID,
		BorrowDate: now, DueDate: now.AddDate(0, 0, 14),
		Book: entities.Book{ID: bookID, Title: "Dune"},
	}, nil
}

func (f *fakeCirculation) Return(_ context.Context, _ policy.Actor, _ uint) (*circulation.ReturnResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.returnResult, nil
}

func (f *fakeCirculation) PayFine(_ context.Context, _ policy.Actor, fineID uint, method entities.PaymentMethod) (*entities.Fine, error) {
	f.paidMethod = method
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Fine{ID: fineID, Paid: true, PaymentMethod: method}, nil
}

func (f *fakeCirculation) Borrows(_ context.Context, _ policy.Actor, ownerID uint, includeReturned bool) ([]entities.Borrow, error) {
	f.ownerID, f.includeReturn = ownerID, includeReturned
	return nil, f.err
}

func (f *fakeCirculation) BorrowFor(_ context.Context, _ policy.Actor, ownerID, borrowID uint) (*entities.Borrow, error) {
	f.ownerID = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Borrow{ID: borrowID, BorrowedByID: ownerID}, nil
}

func (f *fakeCirculation) Fines(_ context.Context, _ policy.Actor, ownerID uint) ([]entities.Fine, circulation.FineSummary, error) {
	f.ownerID = ownerID
	return nil, circulation.FineSummary{}, f.err
}

func (f *fakeCirculation) FineFor(_ context.Context, _ policy.Actor, ownerID, fineID uint) (*entities.Fine, error) {
	f.ownerID = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &entities.Fine{ID: fineID}, nil
}

func (f *fakeCirculation) Notifications(_ context.Context, _ policy.Actor, unreadOnly bool) ([]entities.Notification, error) {
	f.unreadOnly = unreadOnly
	return []entities.Notification{{ID: 1, Message: "hello"}}, f.err
}

func (f *fakeCirculation) MarkNotificationRead(context.Context, policy.Actor, uint) error {
	return f.err
}

type fakeAccounts struct {
	user       *entities.UserAccount
	tokens     *auth.TokenPair
	registered auth.RegisterInput
	active     *bool
	err        error
}

func (f *fakeAccounts) Register(_ context.Context, in auth.RegisterInput) (*entities.UserAccount, error) {
	f.registered = in
	if f.err != nil {
		return nil, f.err
	}
	return &entities.UserAccount{ID: 3, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, Role: in.Role}, nil
}

func (f *fakeAccounts) Login(context.Context, string, string) (*entities.UserAccount, *auth.TokenPair, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.user, f.tokens, nil
}

func (f *fakeAccounts) Refresh(context.Context, string) (*auth.TokenPair, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

func (f *fakeAccounts) MakeAdmin(context.Context, policy.Actor, string) error {
	return f.err
}

func (f *fakeAccounts) SetActive(_ context.Context, _ policy.Actor, _ string, active bool) error {
	f.active = &active
	return f.err
}

func (f *fakeAccounts) ListUsers(context.Context, policy.Actor) ([]entities.UserAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []entities.UserAccount{*f.user}, nil
}

func (f *fakeAccounts) GetUser(_ context.Context, _ policy.Actor, _ uint) (*entities.UserAccount, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeLimiter struct {
	blocked   bool
	failures  int
	successes int
}

func (f *fakeLimiter) Allow(string, string) (bool, time.Duration) {
	if f.blocked {
		return false, 90 * time.Second
	}
	return true, 0
}

func (f *fakeLimiter) RecordFailure(string, string) (bool, time.Duration) {
	f.failures++
	return false, 0
}

func (f *fakeLimiter) RecordSuccess(string, string) {
	f.successes++
}
