package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/logging"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	SetupValidator()

	logger := logging.OrNop(cfg.Logger)
	auditLogger := cfg.AuditLogger
	if auditLogger == nil {
		auditLogger = nopAudit{}
	}
	limiter := cfg.LoginLimiter
	if limiter == nil {
		logger.Warn("no login limiter configured, login attempts are not throttled")
		limiter = nopLimiter{}
	}

	router := gin.New()
	router.Use(logging.GinMiddleware(logger))
	router.Use(logging.Recovery(logger))
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureTransport {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	authMiddleware := auth.NewMiddleware(cfg.Tokens)
	router.Use(authMiddleware.Handler())

	health := NewHealthController(cfg.Database, cfg.Version)
	authController := NewAuthController(cfg.Accounts, limiter, auditLogger)
	usersController := NewUsersController(cfg.Accounts, auditLogger)
	booksController := NewBooksController(cfg.Catalog, auditLogger)
	categoriesController := NewCategoriesController(cfg.Catalog, auditLogger)
	circulationController := NewCirculationController(cfg.Circulation, auditLogger)
	notificationsController := NewNotificationsController(cfg.Circulation)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	// Public endpoints
	router.POST("/register", authController.Register)
	router.POST("/login", authController.Login)
	router.POST("/refresh", authController.Refresh)
	router.GET("/books", booksController.ListBooks)
	router.GET("/books/:id", booksController.GetBook)
	router.GET("/categories", categoriesController.ListCategories)
	router.GET("/categories/:id", categoriesController.GetCategory)

	// Any authenticated member
	member := router.Group("/", authMiddleware.RequireAuth())
	member.POST("/borrow-book", circulationController.BorrowSelf)
	member.GET("/borrows", circulationController.MyBorrows)
	member.GET("/borrows/:id", circulationController.MyBorrow)
	member.GET("/fines", circulationController.MyFines)
	member.GET("/fines/:id", circulationController.MyFine)
	member.POST("/pay-fine/:fine_id", circulationController.PayFine)
	member.GET("/notifications", notificationsController.ListNotifications)
	member.POST("/notifications/:id/read", notificationsController.MarkRead)

	// Administrators
	admin := router.Group("/", authMiddleware.RequireRole(entities.UserRoleAdmin))
	admin.POST("/books", booksController.CreateBook)
	admin.PUT("/books/:id", booksController.UpdateBook)
	admin.DELETE("/books/:id", booksController.DeleteBook)
	admin.POST("/categories", categoriesController.CreateCategory)

	admin.POST("/borrow", circulationController.BorrowAssisted)
	admin.POST("/return", circulationController.Return)
	admin.POST("/return-book", circulationController.Return)
	admin.GET("/borrows-admin/:user_id", circulationController.UserBorrows)
	admin.GET("/borrows-admin/:user_id/:id", circulationController.UserBorrow)
	admin.GET("/fines-admin/:user_id", circulationController.UserFines)
	admin.GET("/fines-admin/:user_id/:id", circulationController.UserFine)

	admin.POST("/make-admin", usersController.MakeAdmin)
	admin.POST("/activate-user", usersController.Activate)
	admin.POST("/deactivate-user", usersController.Deactivate)
	admin.GET("/users", usersController.ListUsers)
	admin.GET("/users/:id", usersController.GetUser)

	if cfg.AuditReader != nil {
		auditController := NewAuditController(cfg.AuditReader)
		admin.GET("/audit", auditController.GetAuditEvents)
	}

	return router
}
