// Command bitgptserver runs the cascade engine's HTTP API and background
// workers (auto-upgrade poller, funds scheduler) as one process. Its flag
// set and startup/shutdown sequence are grounded on the reference service's
// cmd/appserver/main.go, trimmed to this module's composition: no
// API-token/auth flag (this module has no authManager) and no secrets
// cipher step, since neither exists here.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/httpapi"
	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
	"github.com/ayon178/bitgpt-backend-sub002/internal/platform/database"
	"github.com/ayon178/bitgpt-backend-sub002/internal/platform/migrations"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config; in-memory storage when empty)")
	configPath := flag.String("config", "", "path to configuration file (JSON or YAML)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}
	if *addr != "" {
		host, port, err := splitAddr(*addr)
		if err != nil {
			log.Fatalf("parse -addr: %v", err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Host = "0.0.0.0"
		cfg.Server.Port = 8080
	}

	appLog := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	ctx := context.Background()

	if *runMigrations && resolvedDSN(cfg) != "" {
		if err := applyMigrations(ctx, cfg); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	application, err := app.New(ctx, cfg, appLog)
	if err != nil {
		log.Fatalf("build application: %v", err)
	}

	httpService := httpapi.NewService(application, cfg.Server, cfg.RateLimit, appLog)
	if err := application.Attach(httpService); err != nil {
		log.Fatalf("attach http service: %v", err)
	}

	if err := application.Start(ctx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	appLog.WithField("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Info("bitgptserver started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	appLog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		appLog.WithError(err).Error("error during shutdown")
		os.Exit(1)
	}
}

// loadConfig returns the parsed config file at path, or an empty default
// config (in-memory storage, :8080) when path is unset.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

// resolvedDSN mirrors internal/app.openStore's DSN precedence, so -migrate
// is skipped exactly when the application itself would fall back to the
// in-memory store.
func resolvedDSN(cfg *config.Config) string {
	if cfg.Database.DSN != "" {
		return cfg.Database.DSN
	}
	if cfg.Database.Host != "" && cfg.Database.Name != "" {
		return cfg.Database.ConnectionString()
	}
	return ""
}

func applyMigrations(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(ctx, resolvedDSN(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer closeQuietly(db)
	return migrations.Apply(ctx, db)
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}

// splitAddr parses a "host:port" listen address, matching net/http's own
// Addr convention (an empty host means all interfaces).
func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}
