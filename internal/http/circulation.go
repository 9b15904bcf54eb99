package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

// CirculationController exposes borrowing, returns, fines and the ledger reads.
type CirculationController struct {
	circulation CirculationService
	audit       AuditLogger
}

func NewCirculationController(circulation CirculationService, audit AuditLogger) *CirculationController {
	return &CirculationController{circulation: circulation, audit: audit}
}

type borrowRequest struct {
	BookID     uint `json:"book_id" binding:"required"`
	BorrowerID uint `json:"borrower_id"`
}

type returnRequest struct {
	BorrowID uint `json:"borrow_id" binding:"required"`
}

type payFineRequest struct {
	Method entities.PaymentMethod `json:"method" binding:"required,payment_method"`
}

// BorrowSelf lends a book to the caller. borrower_id defaults to the caller.
// POST /borrow-book
func (cc *CirculationController) BorrowSelf(c *gin.Context) {
	cc.borrow(c, policy.SelfService)
}

// BorrowAssisted lends a book on behalf of a member at the desk.
// POST /borrow
func (cc *CirculationController) BorrowAssisted(c *gin.Context) {
	cc.borrow(c, policy.Assisted)
}

func (cc *CirculationController) borrow(c *gin.Context, channel policy.Channel) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	if req.BorrowerID == 0 {
		if channel == policy.Assisted {
			respondBadRequest(c, "borrower_id is required")
			return
		}
		req.BorrowerID = actor.UserID
	}

	borrow, err := cc.circulation.Borrow(c.Request.Context(), actor, req.BookID, req.BorrowerID, channel)
	if err != nil {
		respondAppError(c, err, "borrow book")
		return
	}

	cc.audit.LogCirculation(actor.UserID, "borrow",
		fmt.Sprintf("Lent '%s' to user %d", borrow.Book.Title, borrow.BorrowedByID),
		borrow.ID, map[string]any{"book_id": borrow.BookID, "borrower_id": borrow.BorrowedByID})

	respondCreated(c, gin.H{
		"message":  "book borrowed successfully",
		"borrow":   newBorrowResponse(borrow),
		"due_date": borrow.DueDate.Format("2006-01-02"),
	})
}

// Return closes a borrow by its id
// POST /return, POST /return-book
func (cc *CirculationController) Return(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	result, err := cc.circulation.Return(c.Request.Context(), actor, req.BorrowID)
	if err != nil {
		respondAppError(c, err, "return book")
		return
	}

	metadata := map[string]any{"book_id": result.Borrow.BookID}
	resp := gin.H{
		"message": "book returned successfully",
		"borrow":  newBorrowResponse(result.Borrow),
	}
	if result.Fine != nil {
		metadata["fine_id"] = result.Fine.ID
		metadata["fine_amount"] = result.Fine.Amount.StringFixed(2)
		fine := newFineResponse(result.Fine)
		fine.BookTitle = result.Borrow.Book.Title
		resp["fine"] = fine
	}
	cc.audit.LogCirculation(actor.UserID, "return",
		fmt.Sprintf("Received '%s' from user %d", result.Borrow.Book.Title, result.Borrow.BorrowedByID),
		result.Borrow.ID, metadata)

	c.JSON(http.StatusOK, resp)
}

// PayFine settles a fine
// POST /pay-fine/:fine_id
func (cc *CirculationController) PayFine(c *gin.Context) {
	fineID, ok := parseIDParam(c, "fine_id")
	if !ok {
		return
	}

	var req payFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	fine, err := cc.circulation.PayFine(c.Request.Context(), actor, fineID, req.Method)
	if err != nil {
		respondAppError(c, err, "pay fine")
		return
	}

	cc.audit.LogPayment(actor.UserID, fine.ID, fine.PaymentMethod, fine.Amount.StringFixed(2))
	c.JSON(http.StatusOK, gin.H{
		"message": "fine paid successfully",
		"fine":    newFineResponse(fine),
	})
}

// MyBorrows lists the caller's borrows
// GET /borrows?include_returned=true
func (cc *CirculationController) MyBorrows(c *gin.Context) {
	cc.listBorrows(c, actorFrom(c).UserID)
}

// MyBorrow returns one of the caller's borrows
// GET /borrows/:id
func (cc *CirculationController) MyBorrow(c *gin.Context) {
	cc.getBorrow(c, actorFrom(c).UserID)
}

// UserBorrows lists any member's borrows
// GET /borrows-admin/:user_id
func (cc *CirculationController) UserBorrows(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	cc.listBorrows(c, userID)
}

// UserBorrow returns one borrow of any member
// GET /borrows-admin/:user_id/:id
func (cc *CirculationController) UserBorrow(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	cc.getBorrow(c, userID)
}

func (cc *CirculationController) listBorrows(c *gin.Context, ownerID uint) {
	includeReturned, ok := parseBoolQuery(c, "include_returned")
	if !ok {
		return
	}

	list, err := cc.circulation.Borrows(c.Request.Context(), actorFrom(c), ownerID, includeReturned)
	if err != nil {
		respondAppError(c, err, "list borrows")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"borrows": newBorrowResponses(list),
		"count":   len(list),
	})
}

func (cc *CirculationController) getBorrow(c *gin.Context, ownerID uint) {
	borrowID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	borrow, err := cc.circulation.BorrowFor(c.Request.Context(), actorFrom(c), ownerID, borrowID)
	if err != nil {
		respondAppError(c, err, "get borrow")
		return
	}
	c.JSON(http.StatusOK, newBorrowResponse(borrow))
}

// MyFines lists the caller's fines with totals
// GET /fines
func (cc *CirculationController) MyFines(c *gin.Context) {
	cc.listFines(c, actorFrom(c).UserID)
}

// GET /fines/:id
func (cc *CirculationController) MyFine(c *gin.Context) {
	cc.getFine(c, actorFrom(c).UserID)
}

// GET /fines-admin/:user_id
func (cc *CirculationController) UserFines(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	cc.listFines(c, userID)
}

// GET /fines-admin/:user_id/:id
func (cc *CirculationController) UserFine(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	cc.getFine(c, userID)
}

func (cc *CirculationController) listFines(c *gin.Context, ownerID uint) {
	list, summary, err := cc.circulation.Fines(c.Request.Context(), actorFrom(c), ownerID)
	if err != nil {
		respondAppError(c, err, "list fines")
		return
	}

	fines := make([]FineResponse, 0, len(list))
	for i := range list {
		fines = append(fines, newFineResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"fines":   fines,
		"count":   len(fines),
		"summary": summary,
	})
}

func (cc *CirculationController) getFine(c *gin.Context, ownerID uint) {
	fineID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	fine, err := cc.circulation.FineFor(c.Request.Context(), actorFrom(c), ownerID, fineID)
	if err != nil {
		respondAppError(c, err, "get fine")
		return
	}
	c.JSON(http.StatusOK, newFineResponse(fine))
}
