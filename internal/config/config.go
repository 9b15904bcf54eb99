package config

import (
	"time"

	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		Auth
		Circulation
		Audit
		Tasks
	}

	HTTP struct {
		Port int32
		Host string
		HSTS bool // send Strict-Transport-Security on HTTPS requests
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver   DatabaseDriver
		Path     string // SQLite file, used when Driver is sqlite
		DSN      string // PostgreSQL connection string, used when Driver is postgres
		LogLevel string // silent, error, warn, info
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // console, json
	}
	Auth struct {
		JWTSecret          string
		JWTRefreshSecret   string // Falls back to JWTSecret when empty
		JWTIssuer          string
		AccessTokenExpiry  time.Duration
		RefreshTokenExpiry time.Duration
		BcryptCost         int

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Circulation struct {
		MaxActiveBorrows int
		LoanPeriodDays   int
		FinePerDay       string // Decimal string, e.g. "0.50"
		FineCap          string // Decimal string, "0" disables the cap
	}
	Audit struct {
		RetentionDays   int    // Days to keep audit events (default: 90)
		CleanupSchedule string // Cron format: "30 3 * * *" = daily at 03:30
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("http_hsts", false)
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_driver", string(DatabaseDriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")
	v.SetDefault("database_log_level", "warn")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Auth defaults
	v.SetDefault("auth_jwt_secret", "") // Auto-generated if empty
	v.SetDefault("auth_jwt_refresh_secret", "")
	v.SetDefault("auth_jwt_issuer", "librarian")
	v.SetDefault("auth_access_token_expiry", "15m")
	v.SetDefault("auth_refresh_token_expiry", "168h") // 7 days
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Circulation policy
	v.SetDefault("circulation_max_active_borrows", DefaultMaxActiveBorrows)
	v.SetDefault("circulation_loan_period_days", DefaultLoanPeriodDays)
	v.SetDefault("circulation_fine_per_day", DefaultFinePerDay)
	v.SetDefault("circulation_fine_cap", "0")

	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *")

	// Task queue defaults
	v.SetDefault("tasks_enabled", false)
	v.SetDefault("tasks_workers", 2)
	v.SetDefault("tasks_release_after", "15m")
	v.SetDefault("tasks_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
			HSTS: v.GetBool("HTTP_HSTS"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver:   DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:     v.GetString("DATABASE_PATH"),
			DSN:      v.GetString("DATABASE_DSN"),
			LogLevel: v.GetString("DATABASE_LOG_LEVEL"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Auth: Auth{
			JWTSecret:          v.GetString("AUTH_JWT_SECRET"),
			JWTRefreshSecret:   v.GetString("AUTH_JWT_REFRESH_SECRET"),
			JWTIssuer:          v.GetString("AUTH_JWT_ISSUER"),
			AccessTokenExpiry:  v.GetDuration("AUTH_ACCESS_TOKEN_EXPIRY"),
			RefreshTokenExpiry: v.GetDuration("AUTH_REFRESH_TOKEN_EXPIRY"),
			BcryptCost:         v.GetInt("AUTH_BCRYPT_COST"),
			MaxLoginAttempts:   v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:    v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:    v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Circulation: Circulation{
			MaxActiveBorrows: v.GetInt("CIRCULATION_MAX_ACTIVE_BORROWS"),
			LoanPeriodDays:   v.GetInt("CIRCULATION_LOAN_PERIOD_DAYS"),
			FinePerDay:       v.GetString("CIRCULATION_FINE_PER_DAY"),
			FineCap:          v.GetString("CIRCULATION_FINE_CAP"),
		},
		Audit: Audit{
			RetentionDays:   v.GetInt("AUDIT_RETENTION_DAYS"),
			CleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASKS_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASKS_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASKS_CLEANUP_INTERVAL"),
		},
	}
}
