package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UsersController handles account administration.
type UsersController struct {
	accounts AccountService
	audit    AuditLogger
}

func NewUsersController(accounts AccountService, audit AuditLogger) *UsersController {
	return &UsersController{accounts: accounts, audit: audit}
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// MakeAdmin promotes an account
// POST /make-admin
func (uc *UsersController) MakeAdmin(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	actor := actorFrom(c)
	if err := uc.accounts.MakeAdmin(c.Request.Context(), actor, req.Email); err != nil {
		respondAppError(c, err, "make admin")
		return
	}

	uc.audit.LogUserAdmin(actor.UserID, "make_admin", req.Email)
	respondSuccess(c, req.Email+" is now an admin")
}

// POST /activate-user
func (uc *UsersController) Activate(c *gin.Context) {
	uc.setActive(c, true)
}

// POST /deactivate-user
func (uc *UsersController) Deactivate(c *gin.Context) {
	uc.setActive(c, false)
}

func (uc *UsersController) setActive(c *gin.Context, active bool) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	action, state := "deactivate_user", "deactivated"
	if active {
		action, state = "activate_user", "activated"
	}

	actor := actorFrom(c)
	if err := uc.accounts.SetActive(c.Request.Context(), actor, req.Email, active); err != nil {
		respondAppError(c, err, action)
		return
	}

	uc.audit.LogUserAdmin(actor.UserID, action, req.Email)
	respondSuccess(c, "user "+req.Email+" "+state)
}

// ListUsers returns every account ordered by first name
// GET /users
func (uc *UsersController) ListUsers(c *gin.Context) {
	list, err := uc.accounts.ListUsers(c.Request.Context(), actorFrom(c))
	if err != nil {
		respondAppError(c, err, "list users")
		return
	}

	users := make([]UserResponse, 0, len(list))
	for i := range list {
		users = append(users, newUserResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// GET /users/:id
func (uc *UsersController) GetUser(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := uc.accounts.GetUser(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondAppError(c, err, "get user")
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}
