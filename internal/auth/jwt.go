package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
)

// Claims are the custom JWT claims carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	UserID    uint              `json:"user_id"`
	Role      entities.UserRole `json:"role"`
	TokenType TokenType         `json:"token_type"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token,omitempty"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at,omitempty"`
	TokenType             string    `json:"token_type"` // Bearer
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	accessSecret      []byte
	refreshSecret     []byte
	accessExpiration  time.Duration
	refreshExpiration time.Duration
	issuer            string
	now               func() time.Time
}

// NewTokenService builds a token service. The refresh secret falls back to
// the access secret when empty.
func NewTokenService(cfg config.Auth) *TokenService {
	refreshSecret := []byte(cfg.JWTRefreshSecret)
	if cfg.JWTRefreshSecret == "" {
		refreshSecret = []byte(cfg.JWTSecret)
	}

	return &TokenService{
		accessSecret:      []byte(cfg.JWTSecret),
		refreshSecret:     refreshSecret,
		accessExpiration:  cfg.AccessTokenExpiry,
		refreshExpiration: cfg.RefreshTokenExpiry,
		issuer:            cfg.JWTIssuer,
		now:               time.Now,
	}
}

// GeneratePair issues a fresh access and refresh token for the user.
func (s *TokenService) GeneratePair(user *entities.UserAccount) (*TokenPair, error) {
	now := s.now()

	access, err := s.sign(user, TokenTypeAccess, now, s.accessExpiration, s.accessSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(user, TokenTypeRefresh, now, s.refreshExpiration, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  now.Add(s.accessExpiration),
		RefreshTokenExpiresAt: now.Add(s.refreshExpiration),
		TokenType:             "Bearer",
	}, nil
}

// GenerateAccess issues only an access token, used by refresh.
func (s *TokenService) GenerateAccess(user *entities.UserAccount) (*TokenPair, error) {
	now := s.now()
	access, err := s.sign(user, TokenTypeAccess, now, s.accessExpiration, s.accessSecret)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:          access,
		AccessTokenExpiresAt: now.Add(s.accessExpiration),
		TokenType:            "Bearer",
	}, nil
}

func (s *TokenService) sign(user *entities.UserAccount, typ TokenType, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID:    user.ID,
		Role:      user.Role,
		TokenType: typ,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) ValidateAccess(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.accessSecret, TokenTypeAccess)
}

func (s *TokenService) ValidateRefresh(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.refreshSecret, TokenTypeRefresh)
}

func (s *TokenService) validate(tokenString string, secret []byte, expected TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expected {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}
