// Package auth provides accounts, token issuance and request authentication.
//
// Clients log in with email and password and receive an HS256 access token
// and a longer-lived refresh token. API requests carry the access token in
// the Authorization header:
//
//	Authorization: Bearer <access_token>
//
// # Configuration
//
//	AUTH_JWT_SECRET=<secret>          # Random per process if empty
//	AUTH_JWT_REFRESH_SECRET=<secret>  # Defaults to AUTH_JWT_SECRET
//	AUTH_ACCESS_TOKEN_EXPIRY=15m
//	AUTH_REFRESH_TOKEN_EXPIRY=168h
//	AUTH_BCRYPT_COST=12
//	AUTH_MAX_LOGIN_ATTEMPTS=5
//	AUTH_LOCKOUT_DURATION=30m
//
// # Usage
//
//	tokens := auth.NewTokenService(cfg.Auth)
//	authService := auth.NewService(db, cfg.Auth, tokens, logger)
//	authMiddleware := auth.NewMiddleware(tokens)
//	router.Use(authMiddleware.Handler())
//	admin := router.Group("/", authMiddleware.RequireRole(entities.UserRoleAdmin))
//
// Extract the caller in handlers:
//
//	userID := auth.GetUserID(c)  // 0 for anonymous requests
package auth
