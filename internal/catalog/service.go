// Package catalog manages books and categories.
//
// Listing and reading are public. Every change goes through
// policy.AuthorizeCatalogChange and is validated before the store is touched.
package catalog

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/database/borrows"
	"github.com/mrlokans/librarian/internal/database/categories"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

var (
	// ErrNoChanges is returned for an update that names no field.
	ErrNoChanges      = apperr.New(apperr.KindValidation, "no_changes", "no fields to update")
	ErrBookOnLoan     = apperr.Conflict("book_on_loan", "the book cannot be deleted while a copy is on loan")
	ErrCategoryExists = apperr.Conflict("category_exists", "a category with this name already exists")
)

// NewBook is the input for CreateBook.
type NewBook struct {
	Title      string `json:"title" validate:"required,max=512"`
	Author     string `json:"author" validate:"required,max=256"`
	CategoryID uint   `json:"category_id" validate:"required"`
	ISBN       string `json:"isbn" validate:"max=20"`
	Location   string `json:"location" validate:"max=100"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
}

// BookPatch is a partial update. Nil fields are left untouched; Quantity
// sets the number of copies on the shelf.
type BookPatch struct {
	Title      *string `json:"title"`
	Author     *string `json:"author"`
	CategoryID *uint   `json:"category_id"`
	ISBN       *string `json:"isbn"`
	Location   *string `json:"location"`
	Quantity   *int    `json:"quantity"`
}

func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.CategoryID == nil &&
		p.ISBN == nil && p.Location == nil && p.Quantity == nil
}

func (p BookPatch) Validate() error {
	if p.Title != nil && (strings.TrimSpace(*p.Title) == "" || len(*p.Title) > 512) {
		return apperr.Validation("invalid_book", "title must be between 1 and 512 characters")
	}
	if p.Author != nil && (strings.TrimSpace(*p.Author) == "" || len(*p.Author) > 256) {
		return apperr.Validation("invalid_book", "author must be between 1 and 256 characters")
	}
	if p.CategoryID != nil && *p.CategoryID == 0 {
		return apperr.Validation("invalid_book", "category_id must be positive")
	}
	if p.ISBN != nil && len(*p.ISBN) > 20 {
		return apperr.Validation("invalid_book", "isbn must be at most 20 characters")
	}
	if p.Location != nil && len(*p.Location) > 100 {
		return apperr.Validation("invalid_book", "location must be at most 100 characters")
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return apperr.Validation("invalid_book", "quantity must not be negative")
	}
	return nil
}

type Service struct {
	db       *gorm.DB
	validate *validator.Validate
	logger   *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{db: db, validate: v, logger: logger}
}

func (s *Service) CreateBook(ctx context.Context, actor policy.Actor, input NewBook) (*entities.Book, error) {
	if err := policy.AuthorizeCatalogChange(actor).Err(); err != nil {
		return nil, err
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	if err := s.validateStruct(input); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if _, err := categories.NewRepository(db).GetByID(input.CategoryID); err != nil {
		return nil, lookupError("category", "load category", err)
	}

	book := &entities.Book{
		Title:            input.Title,
		Author:           input.Author,
		CategoryID:       input.CategoryID,
		ISBN:             strings.TrimSpace(input.ISBN),
		Location:         strings.TrimSpace(input.Location),
		OriginalQuantity: input.Quantity,
		CurrentQuantity:  input.Quantity,
		AddedByID:        actor.UserID,
	}
	if err := books.NewRepository(db).Create(book); err != nil {
		return nil, apperr.Store("create book", err)
	}

	s.logger.Info("book added", zap.Uint("book_id", book.ID), zap.String("title", book.Title), zap.Uint("added_by", actor.UserID))
	return book, nil
}

func (s *Service) GetBook(ctx context.Context, id uint) (*entities.Book, error) {
	book, err := books.NewRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, lookupError("book", "load book", err)
	}
	return book, nil
}

// ListBooks searches the catalog. Only admins may see titles with no copy on the shelf.
func (s *Service) ListBooks(ctx context.Context, actor policy.Actor, filter books.Filter) ([]entities.Book, error) {
	if !actor.IsAdmin() {
		filter.IncludeUnavailable = false
	}
	list, err := books.NewRepository(s.db.WithContext(ctx)).List(filter)
	if err != nil {
		return nil, apperr.Store("list books", err)
	}
	return list, nil
}

// UpdateBook applies a partial update. Setting Quantity puts that many
// copies on the shelf and raises original_quantity by the copies still on
// loan so they can come back.
func (s *Service) UpdateBook(ctx context.Context, actor policy.Actor, id uint, patch BookPatch) (*entities.Book, error) {
	if err := policy.AuthorizeCatalogChange(actor).Err(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, ErrNoChanges
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var book *entities.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)
		if _, err := repo.GetByIDForUpdate(id); err != nil {
			return lookupError("book", "load book", err)
		}

		updates := map[string]any{}
		if patch.Title != nil {
			updates["title"] = strings.TrimSpace(*patch.Title)
		}
		if patch.Author != nil {
			updates["author"] = strings.TrimSpace(*patch.Author)
		}
		if patch.ISBN != nil {
			updates["isbn"] = strings.TrimSpace(*patch.ISBN)
		}
		if patch.Location != nil {
			updates["location"] = strings.TrimSpace(*patch.Location)
		}
		if patch.CategoryID != nil {
			if _, err := categories.NewRepository(tx).GetByID(*patch.CategoryID); err != nil {
				return lookupError("category", "load category", err)
			}
			updates["category_id"] = *patch.CategoryID
		}
		if patch.Quantity != nil {
			onLoan, err := borrows.NewRepository(tx).CountOpenForBook(id)
			if err != nil {
				return apperr.Store("count open borrows", err)
			}
			updates["current_quantity"] = *patch.Quantity
			updates["original_quantity"] = *patch.Quantity + int(onLoan)
		}

		if _, err := repo.Update(id, updates); err != nil {
			return apperr.Store("update book", err)
		}

		var err error
		book, err = repo.GetByID(id)
		if err != nil {
			return apperr.Store("reload book", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("book updated", zap.Uint("book_id", id), zap.Uint("updated_by", actor.UserID))
	return book, nil
}

// DeleteBook removes a book from the catalog unless a copy is still on loan.
func (s *Service) DeleteBook(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.AuthorizeCatalogChange(actor).Err(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)
		if _, err := repo.GetByIDForUpdate(id); err != nil {
			return lookupError("book", "load book", err)
		}

		onLoan, err := borrows.NewRepository(tx).CountOpenForBook(id)
		if err != nil {
			return apperr.Store("count open borrows", err)
		}
		if onLoan > 0 {
			return ErrBookOnLoan
		}

		deleted, err := repo.Delete(id)
		if err != nil {
			return apperr.Store("delete book", err)
		}
		if !deleted {
			return apperr.NotFound("book")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("book deleted", zap.Uint("book_id", id), zap.Uint("deleted_by", actor.UserID))
	return nil
}

func (s *Service) ListCategories(ctx context.Context) ([]entities.Category, error) {
	list, err := categories.NewRepository(s.db.WithContext(ctx)).List()
	if err != nil {
		return nil, apperr.Store("list categories", err)
	}
	return list, nil
}

func (s *Service) GetCategory(ctx context.Context, id uint) (*entities.Category, error) {
	category, err := categories.NewRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, lookupError("category", "load category", err)
	}
	return category, nil
}

func (s *Service) CreateCategory(ctx context.Context, actor policy.Actor, name string) (*entities.Category, error) {
	if err := policy.AuthorizeCatalogChange(actor).Err(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, apperr.Validation("invalid_category", "name must be between 1 and 100 characters")
	}

	repo := categories.NewRepository(s.db.WithContext(ctx))
	exists, err := repo.NameExists(name)
	if err != nil {
		return nil, apperr.Store("check category name", err)
	}
	if exists {
		return nil, ErrCategoryExists
	}

	createdBy := actor.UserID
	category := &entities.Category{Name: name, CreatedByID: &createdBy}
	if err := repo.Create(category); err != nil {
		return nil, apperr.Store("create category", err)
	}

	s.logger.Info("category added", zap.Uint("category_id", category.ID), zap.String("name", name))
	return category, nil
}

// validateStruct turns the first validator failure into a Validation error.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.Validation("invalid_book", describe(fe))
	}
	return apperr.Validation("invalid_book", err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

func lookupError(resource, op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(resource)
	}
	return apperr.Store(op, err)
}
