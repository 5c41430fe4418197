// Package main provides the arena server entry point.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/botarena/arena/internal/server"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
		jwtSecret    string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "sqlite", "Database type (sqlite or postgres)")
	flag.StringVar(&databaseDSN, "db-dsn", "arena.db", "Database connection string")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HMAC secret for signing tokens")
	flag.Parse()

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if jwtSecret == "" {
		jwtSecret = os.Getenv("ARENA_JWT_SECRET")
	}
	if jwtSecret == "" {
		// Tokens from previous runs become invalid on restart.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Error("generate jwt secret", "error", err)
			os.Exit(1)
		}
		jwtSecret = hex.EncodeToString(buf)
		logger.Warn("no jwt secret configured, generated an ephemeral one")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		logger.Error("database setup failed", "error", err)
		os.Exit(1)
	}

	srv := server.New(gormDB, []byte(jwtSecret), server.WithLogger(logger))
	if err := srv.AutoMigrate(); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: srv.MountRoutes(),
	}

	go func() {
		logger.Info("arena server ready", "listen", listenAddr, "db", databaseType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("arena server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if v := os.Getenv("DATABASE_TYPE"); v != "" {
		dbType = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		dsn = v
	}

	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected sqlite or postgres)", dbType)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", dbType, err)
	}
	return gormDB, nil
}
