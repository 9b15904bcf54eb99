package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/database/books"
)

type BooksController struct {
	catalog CatalogService
	audit   AuditLogger
}

func NewBooksController(catalog CatalogService, audit AuditLogger) *BooksController {
	return &BooksController{catalog: catalog, audit: audit}
}

type createBookRequest struct {
	Title      string `json:"title" binding:"required,max=512"`
	Author     string `json:"author" binding:"required,max=256"`
	CategoryID uint   `json:"category_id" binding:"required"`
	ISBN       string `json:"isbn" binding:"max=20"`
	Location   string `json:"location" binding:"max=100"`
	Quantity   *int   `json:"quantity" binding:"required,gte=0"`
}

// ListBooks searches the catalog
// GET /books?title=&author=&isbn=&category=&include_unavailable=
func (bc *BooksController) ListBooks(c *gin.Context) {
	includeUnavailable, ok := parseBoolQuery(c, "include_unavailable")
	if !ok {
		return
	}

	list, err := bc.catalog.ListBooks(c.Request.Context(), actorFrom(c), books.Filter{
		Title:              c.Query("title"),
		Author:             c.Query("author"),
		ISBN:               c.Query("isbn"),
		Category:           c.Query("category"),
		IncludeUnavailable: includeUnavailable,
	})
	if err != nil {
		respondAppError(c, err, "list books")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"books": newBookResponses(list),
		"count": len(list),
	})
}

// GetBook returns one catalog entry
// GET /books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := bc.catalog.GetBook(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, newBookResponse(book))
}

// CreateBook adds a title to the catalog
// POST /books
func (bc *BooksController) CreateBook(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	book, err := bc.catalog.CreateBook(c.Request.Context(), actor, catalog.NewBook{
		Title:      req.Title,
		Author:     req.Author,
		CategoryID: req.CategoryID,
		ISBN:       req.ISBN,
		Location:   req.Location,
		Quantity:   *req.Quantity,
	})
	if err != nil {
		respondAppError(c, err, "create book")
		return
	}

	bc.audit.LogCatalog(actor.UserID, "book_create", "book", book.ID, fmt.Sprintf("Added '%s' (%d copies)", book.Title, book.OriginalQuantity))
	respondCreated(c, gin.H{
		"message": "book added successfully",
		"book_id": book.ID,
	})
}

// UpdateBook applies a partial update
// PUT /books/:id
func (bc *BooksController) UpdateBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var patch catalog.BookPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	book, err := bc.catalog.UpdateBook(c.Request.Context(), actor, id, patch)
	if err != nil {
		respondAppError(c, err, "update book")
		return
	}

	bc.audit.LogCatalog(actor.UserID, "book_update", "book", book.ID, fmt.Sprintf("Updated '%s'", book.Title))
	c.JSON(http.StatusOK, gin.H{
		"message": "book updated successfully",
		"book":    newBookResponse(book),
	})
}

// DeleteBook removes a title that has no copy on loan
// DELETE /books/:id
func (bc *BooksController) DeleteBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	actor := actorFrom(c)
	if err := bc.catalog.DeleteBook(c.Request.Context(), actor, id); err != nil {
		respondAppError(c, err, "delete book")
		return
	}

	bc.audit.LogCatalog(actor.UserID, "book_delete", "book", id, fmt.Sprintf("Deleted book %d", id))
	respondSuccess(c, "book deleted successfully")
}
