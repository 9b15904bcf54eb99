package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type CategoriesController struct {
	catalog CatalogService
	audit   AuditLogger
}

func NewCategoriesController(catalog CatalogService, audit AuditLogger) *CategoriesController {
	return &CategoriesController{catalog: catalog, audit: audit}
}

// ListCategories returns every category
// GET /categories
func (cc *CategoriesController) ListCategories(c *gin.Context) {
	list, err := cc.catalog.ListCategories(c.Request.Context())
	if err != nil {
		respondAppError(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": list, "count": len(list)})
}

// GET /categories/:id
func (cc *CategoriesController) GetCategory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	category, err := cc.catalog.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err, "get category")
		return
	}
	c.JSON(http.StatusOK, category)
}

// CreateCategory adds a category
// POST /categories
func (cc *CategoriesController) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	category, err := cc.catalog.CreateCategory(c.Request.Context(), actor, req.Name)
	if err != nil {
		respondAppError(c, err, "create category")
		return
	}

	cc.audit.LogCatalog(actor.UserID, "category_create", "category", category.ID, "Added category "+category.Name)
	respondCreated(c, gin.H{
		"message":     "category added successfully",
		"category_id": category.ID,
	})
}
