package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/apperr"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database/users"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/policy"
)

// EmailRule is the validator rule shared by the service and request binding.
const EmailRule = "required,email,max=254"

var (
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthenticated, "invalid_credentials", "invalid email or password")
	ErrAccountLocked      = apperr.New(apperr.KindForbidden, "account_locked", "account is locked due to too many failed login attempts")
	ErrAccountDeactivated = apperr.New(apperr.KindForbidden, "account_deactivated", "account is deactivated")
	ErrEmailTaken         = apperr.Conflict("email_taken", "an account with this email already exists")
	ErrEmailInvalid       = apperr.Validation("invalid_email", "invalid email format")
	ErrNameRequired       = apperr.Validation("name_required", "first_name and last_name are required")
	ErrInvalidRole        = apperr.Validation("invalid_role", "role must be student or external")
	ErrInvalidRefresh     = apperr.New(apperr.KindUnauthenticated, "invalid_refresh_token", "invalid or expired refresh token")
)

// RegisterInput is a self-registration request.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      entities.UserRole
}

// Service handles registration, login and account administration.
type Service struct {
	db       *gorm.DB
	tokens   *TokenService
	config   config.Auth
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(db *gorm.DB, cfg config.Auth, tokens *TokenService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		tokens:   tokens,
		config:   cfg,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger,
	}
}

// Register creates a student or external account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entities.UserAccount, error) {
	if in.Role == "" {
		in.Role = entities.UserRoleStudent
	}
	if in.Role != entities.UserRoleStudent && in.Role != entities.UserRoleExternal {
		return nil, ErrInvalidRole
	}
	return s.createUser(ctx, in)
}

// CreateAdmin creates an administrator account. It is used to bootstrap
// the first admin from the command line.
func (s *Service) CreateAdmin(ctx context.Context, in RegisterInput) (*entities.UserAccount, error) {
	in.Role = entities.UserRoleAdmin
	return s.createUser(ctx, in)
}

func (s *Service) createUser(ctx context.Context, in RegisterInput) (*entities.UserAccount, error) {
	email := normalizeEmail(in.Email)
	if err := s.validate.Var(email, EmailRule); err != nil {
		return nil, ErrEmailInvalid
	}
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" {
		return nil, ErrNameRequired
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	repo := users.NewRepository(s.db.WithContext(ctx))
	exists, err := repo.EmailExists(email)
	if err != nil {
		return nil, apperr.Store("check email", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	user := &entities.UserAccount{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := repo.Create(user); err != nil {
		return nil, apperr.Store("create user", err)
	}

	s.logger.Info("account created", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login checks credentials and issues a token pair. Repeated failures lock
// the account for the configured duration.
func (s *Service) Login(ctx context.Context, email, password string) (*entities.UserAccount, *TokenPair, error) {
	repo := users.NewRepository(s.db.WithContext(ctx))

	user, err := repo.GetByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, apperr.Store("load user", err)
	}

	now := s.now()
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, nil, ErrAccountLocked
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			s.logger.Warn("password check failed", zap.Uint("user_id", user.ID), zap.Error(err))
		}
		if err := s.recordFailedLogin(repo, user, now); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrAccountDeactivated
	}

	if err := repo.RecordLogin(user.ID, now); err != nil {
		return nil, nil, apperr.Store("record login", err)
	}
	user.LastLoginAt = &now
	user.FailedLoginCount = 0
	user.LockedUntil = nil

	pair, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return user, pair, nil
}

func (s *Service) recordFailedLogin(repo *users.Repository, user *entities.UserAccount, now time.Time) error {
	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	lockout := s.config.LockoutDuration
	if lockout <= 0 {
		lockout = 30 * time.Minute
	}

	user.FailedLoginCount++
	var lockedUntil *time.Time
	if user.FailedLoginCount >= maxAttempts {
		until := now.Add(lockout)
		lockedUntil = &until
		s.logger.Warn("account locked", zap.Uint("user_id", user.ID), zap.Time("locked_until", until))
	}

	if err := repo.RecordFailedLogin(user.ID, user.FailedLoginCount, lockedUntil); err != nil {
		return apperr.Store("record failed login", err)
	}
	return nil
}

// Refresh issues a new access token carrying the account's current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh.Wrap(err)
	}

	user, err := users.NewRepository(s.db.WithContext(ctx)).GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, apperr.Store("load user", err)
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	pair, err := s.tokens.GenerateAccess(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return pair, nil
}

// MakeAdmin promotes the account with the given email.
func (s *Service) MakeAdmin(ctx context.Context, actor policy.Actor, email string) error {
	if err := policy.AuthorizeAccountAdmin(actor).Err(); err != nil {
		return err
	}
	changed, err := users.NewRepository(s.db.WithContext(ctx)).SetRole(normalizeEmail(email), entities.UserRoleAdmin)
	if err != nil {
		return apperr.Store("set role", err)
	}
	if !changed {
		return apperr.NotFound("user").WithMessage("user not found or already an admin")
	}
	s.logger.Info("account promoted", zap.String("email", email), zap.Uint("by", actor.UserID))
	return nil
}

// SetActive activates or deactivates the account with the given email.
func (s *Service) SetActive(ctx context.Context, actor policy.Actor, email string, active bool) error {
	if err := policy.AuthorizeAccountAdmin(actor).Err(); err != nil {
		return err
	}
	changed, err := users.NewRepository(s.db.WithContext(ctx)).SetActive(normalizeEmail(email), active)
	if err != nil {
		return apperr.Store("set active", err)
	}
	if !changed {
		state := "inactive"
		if active {
			state = "active"
		}
		return apperr.NotFound("user").WithMessage("user not found or already %s", state)
	}
	s.logger.Info("account status changed", zap.String("email", email), zap.Bool("active", active), zap.Uint("by", actor.UserID))
	return nil
}

func (s *Service) ListUsers(ctx context.Context, actor policy.Actor) ([]entities.UserAccount, error) {
	if err := policy.AuthorizeAccountAdmin(actor).Err(); err != nil {
		return nil, err
	}
	list, err := users.NewRepository(s.db.WithContext(ctx)).List()
	if err != nil {
		return nil, apperr.Store("list users", err)
	}
	return list, nil
}

func (s *Service) GetUser(ctx context.Context, actor policy.Actor, id uint) (*entities.UserAccount, error) {
	if err := policy.AuthorizeAccountAdmin(actor).Err(); err != nil {
		return nil, err
	}
	user, err := users.NewRepository(s.db.WithContext(ctx)).GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Store("load user", err)
	}
	return user, nil
}

// HasUsers returns true if any account exists.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	count, err := users.NewRepository(s.db.WithContext(ctx)).Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
