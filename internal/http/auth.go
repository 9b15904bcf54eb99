package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/entities"
)

// AuthController handles registration, login and token refresh.
type AuthController struct {
	accounts AccountService
	limiter  LoginLimiter
	audit    AuditLogger
}

func NewAuthController(accounts AccountService, limiter LoginLimiter, audit AuditLogger) *AuthController {
	return &AuthController{accounts: accounts, limiter: limiter, audit: audit}
}

type registerRequest struct {
	FirstName string            `json:"first_name" binding:"required,max=100"`
	LastName  string            `json:"last_name" binding:"required,max=100"`
	Email     string            `json:"email" binding:"required,email,max=254"` // auth.EmailRule
	Password  string            `json:"password" binding:"required"`
	Role      entities.UserRole `json:"role" binding:"member_role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register creates a student or external account
// POST /register
func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := ac.accounts.Register(c.Request.Context(), auth.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		respondAppError(c, err, "register")
		return
	}

	ac.audit.LogAuth(user.ID, "register", c.ClientIP(), c.Request.UserAgent(), true)
	respondCreated(c, gin.H{
		"message": "registration successful",
		"user":    newUserResponse(user),
	})
}

// Login exchanges credentials for a token pair
// POST /login
func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ip := c.ClientIP()
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if allowed, retryAfter := ac.limiter.Allow(ip, email); !allowed {
		auth.RespondThrottled(c, retryAfter)
		return
	}

	user, tokens, err := ac.accounts.Login(c.Request.Context(), email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ac.limiter.RecordFailure(ip, email)
		}
		ac.audit.LogAuth(0, "login_failed", ip, c.Request.UserAgent(), false)
		respondAppError(c, err, "login")
		return
	}

	ac.limiter.RecordSuccess(ip, email)
	ac.audit.LogAuth(user.ID, "login", ip, c.Request.UserAgent(), true)

	c.JSON(http.StatusOK, gin.H{
		"message": "login successful",
		"user":    newUserResponse(user),
		"tokens":  tokens,
	})
}

// Refresh issues a new access token
// POST /refresh
func (ac *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tokens, err := ac.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondAppError(c, err, "refresh token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}
