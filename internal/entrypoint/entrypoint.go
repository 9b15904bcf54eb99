package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditdb "github.com/mrlokans/librarian/internal/database/audit"
	http_controllers "github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/logging"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until ctx is cancelled, then drains it.
func Serve(ctx context.Context, router *gin.Engine, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			if onShutdown != nil {
				releaseCtx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				onShutdown(releaseCtx)
			}
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Background work stops after in-flight requests have drained.
	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}

	logger.Info("server exiting")
	return nil
}

// Run wires the application from cfg and serves until SIGINT or SIGTERM.
func Run(ctx context.Context, cfg *config.Config, version string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Log)
	defer logger.Sync() //nolint:errcheck
	logger.Info("starting librarian", zap.String("version", version))

	circulationCfg, err := circulation.ConfigFrom(cfg.Circulation)
	if err != nil {
		return fmt.Errorf("invalid circulation config: %w", err)
	}
	if err := scheduler.ValidateCronSchedule(cfg.Audit.CleanupSchedule); err != nil {
		return fmt.Errorf("invalid AUDIT_CLEANUP_SCHEDULE %q: %w", cfg.Audit.CleanupSchedule, err)
	}

	if cfg.Auth.JWTSecret == "" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		logger.Warn("AUTH_JWT_SECRET is not set, generated a random one; tokens will not survive a restart")
	}

	db, err := database.NewDatabase(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", zap.Error(err))
		}
	}()

	tokens := auth.NewTokenService(cfg.Auth)
	accounts := auth.NewService(db.DB, cfg.Auth, tokens, logger)
	if hasUsers, err := accounts.HasUsers(ctx); err == nil && !hasUsers {
		logger.Warn("no accounts found, run 'librarian create-admin' to create an administrator")
	}

	auditService := audit.NewService(auditdb.NewRepository(db.DB), logger)
	bg := &lifecycle{audit: auditService}

	// Audit retention: through the task queue when enabled, inline otherwise.
	var purger scheduler.AuditPurgeEnqueuer = inlinePurge{purger: auditService}
	if cfg.Tasks.Enabled {
		taskClient, err := tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error("error closing task client", zap.Error(err))
			}
		}()
		taskClient.Register(tasks.NewPurgeAuditEventsQueue(auditService, logger))
		taskCtx, taskCancel := context.WithCancel(context.Background())
		defer taskCancel()
		bg.taskClient, bg.taskCancel = taskClient, taskCancel
		taskClient.Start(taskCtx)
		purger = taskClient
	}

	// Runs before the task client and database are closed.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Global.ShutdownTimeoutInSeconds)*time.Second)
		defer cancel()
		bg.release(releaseCtx)
	}()

	limiter := auth.NewRateLimiter(auth.RateLimitConfigFrom(cfg.Auth))
	bg.limiter = limiter

	retention := scheduler.NewAuditRetentionScheduler(purger, cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, logger)
	if err := retention.Start(ctx); err != nil {
		return fmt.Errorf("failed to start audit retention scheduler: %w", err)
	}
	bg.retention = retention

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Accounts:        accounts,
		Catalog:         catalog.NewService(db.DB, logger),
		Circulation:     circulation.NewService(db.DB, circulationCfg, logger),
		Tokens:          tokens,
		LoginLimiter:    limiter,
		AuditLogger:     auditService,
		AuditReader:     auditService,
		Database:        db,
		Version:         version,
		Logger:          logger,
		SecureTransport: cfg.HTTP.HSTS,
	})

	return Serve(ctx, router, cfg, logger, bg.release)
}

// lifecycle stops the background work started by Run. Serve releases it
// after draining requests; Run releases it on every other exit path.
type lifecycle struct {
	once       sync.Once
	retention  *scheduler.AuditRetentionScheduler
	taskClient *tasks.Client
	taskCancel context.CancelFunc
	limiter    *auth.RateLimiter
	audit      *audit.Service
}

func (l *lifecycle) release(ctx context.Context) {
	l.once.Do(func() {
		if l.retention != nil {
			l.retention.Stop()
		}
		if l.taskClient != nil {
			l.taskClient.Stop(ctx)
		}
		if l.taskCancel != nil {
			l.taskCancel()
		}
		if l.limiter != nil {
			l.limiter.Stop()
		}
		// Pending audit writes land before the database is closed.
		if l.audit != nil {
			l.audit.Wait()
		}
	})
}

// inlinePurge runs the purge in-process when the task queue is disabled.
type inlinePurge struct {
	purger tasks.AuditPurger
}

func (p inlinePurge) EnqueueAuditPurge(retentionDays int) (string, error) {
	cutoff := tasks.PurgeAuditEventsTask{RetentionDays: retentionDays}.Cutoff(time.Now())
	if _, err := p.purger.PurgeBefore(cutoff); err != nil {
		return "", err
	}
	return "inline", nil
}
