// Package main runs the NoteBox HTTP API over an encrypted SQLite store.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/backup"
	"github.com/amirk1998/notebox/internal/config"
	"github.com/amirk1998/notebox/internal/database"
	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/metrics"
	"github.com/amirk1998/notebox/internal/ratelimit"
	"github.com/amirk1998/notebox/internal/repository"
	"github.com/amirk1998/notebox/internal/security"
	"github.com/amirk1998/notebox/internal/server"
	"github.com/amirk1998/notebox/internal/service"
)

var version = "dev"

const (
	monitorInterval      = 5 * time.Minute
	limiterCleanup       = time.Hour
	sessionSweepInterval = 30 * time.Minute
	dbStatsInterval      = 15 * time.Second
	shutdownTimeout      = 10 * time.Second
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "notebox-server",
	Short: "NoteBox API server",
	Long: `notebox-server serves the NoteBox JSON API backed by a SQLCipher database.

Configuration is read from the environment (and a .env file if present).
DB_ENCRYPTION_KEY and APP_ENCRYPTION_KEY are required.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the demo accounts if they are missing",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(backupCmd)
}

// environment is the configuration, logger and open database shared by all
// subcommands.
type environment struct {
	cfg  *config.Config
	log  *logger.Logger
	keys *security.KeyManager
	db   *sql.DB
}

func openEnvironment(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Logger, "notebox-server")
	if err != nil {
		return nil, err
	}

	keys, err := security.NewKeyManager(cfg.DBEncryptionKey, cfg.AppEncryptionKey)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	db, err := database.Connect(database.DefaultConfig(cfg.DBPath, keys.DBKey()))
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		log.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &environment{cfg: cfg, log: log, keys: keys, db: db}, nil
}

func (e *environment) close() {
	if err := e.db.Close(); err != nil {
		e.log.Warnw("Failed to close database", "error", err)
	}
	e.log.Close()
}

func (e *environment) backupManager() (*backup.Manager, error) {
	retention := time.Duration(e.cfg.BackupRetentionDays) * 24 * time.Hour
	m, err := backup.NewManager(e.db, e.cfg.BackupDir, e.cfg.BackupEncryptionKey, retention, e.log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backup manager: %w", err)
	}
	return m, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	env.log.Infow("Database schema is up to date", "path", env.cfg.DBPath)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	env, err := openEnvironment(cmd.Context())
	if err != nil {
		return err
	}
	defer env.close()

	seeded, err := database.Seed(cmd.Context(), env.db, security.NewPasswordHasher(), env.cfg.SessionTTL)
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintln(cmd.OutOrStdout(), "Demo accounts created")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Demo accounts already present")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := openEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.close()
	cfg, log := env.cfg, env.log

	hasher := security.NewPasswordHasher()
	if cfg.SeedDemoUsers {
		seeded, err := database.Seed(ctx, env.db, hasher, cfg.SessionTTL)
		if err != nil {
			return err
		}
		if seeded {
			log.Infow("Demo accounts created")
		}
	}

	auditLogger, err := audit.NewLogger(ctx, env.db, audit.Options{
		FilePath: cfg.AuditLogPath,
		Async:    cfg.AuditAsyncMode,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer auditLogger.Close()

	encryptor, err := security.NewFieldEncryptor(env.keys.AppKey())
	if err != nil {
		return fmt.Errorf("failed to initialize field encryptor: %w", err)
	}

	limiter := ratelimit.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	ipLimiter := ratelimit.NewRateLimiter(cfg.RateLimitRPS*5, cfg.RateLimitBurst*5)

	users := repository.NewUserRepository(env.db)
	notes := repository.NewNoteRepository(env.db)
	sessions := repository.NewSessionRepository(env.db)

	authService, err := service.NewAuthService(users, sessions, hasher, limiter, auditLogger, cfg.SessionTTL)
	if err != nil {
		return err
	}
	noteService := service.NewNoteService(notes, encryptor, limiter, auditLogger)
	profileService := service.NewProfileService(users, sessions, notes, limiter, auditLogger, cfg.ProfileOwnershipCheck)

	m := metrics.New()
	srv := server.New(authService, noteService, profileService, m, log, server.Options{
		CORSOrigins:  cfg.CORSOrigins,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
		IPLimiter:    ipLimiter,
	})

	// workers must stop before the audit logger and database close
	workers := newWorkerGroup(ctx)
	defer workers.stop()

	workers.spawn(func(ctx context.Context) { limiter.StartCleanupWorker(ctx, limiterCleanup) })
	workers.spawn(func(ctx context.Context) { ipLimiter.StartCleanupWorker(ctx, limiterCleanup) })
	workers.spawn(func(ctx context.Context) { audit.NewMonitor(auditLogger, log).Start(ctx, monitorInterval) })
	workers.spawn(func(ctx context.Context) { sweepSessions(ctx, sessions, log) })
	workers.spawn(func(ctx context.Context) { observeDB(ctx, m, env.db) })
	if cfg.BackupInterval > 0 {
		backups, err := env.backupManager()
		if err != nil {
			return err
		}
		workers.spawn(func(ctx context.Context) { backups.Start(ctx, cfg.BackupInterval) })
	}

	httpServer := srv.NewHTTPServer(cfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting NoteBox API",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"profile_ownership_check", cfg.ProfileOwnershipCheck,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Infow("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Graceful shutdown failed", "error", err)
		return err
	}
	return nil
}

func sweepSessions(ctx context.Context, sessions *repository.SessionRepository, log *logger.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil {
				log.Warnw("Failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 {
				log.Infow("Deleted expired sessions", "count", n)
			}
		}
	}
}

func observeDB(ctx context.Context, m *metrics.Metrics, db *sql.DB) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()

	m.ObserveDB(db)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ObserveDB(db)
		}
	}
}
