package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dag-trigger-gateway/internal/auth"
	"dag-trigger-gateway/internal/composer"
	"dag-trigger-gateway/internal/config"
	"dag-trigger-gateway/internal/db"
	"dag-trigger-gateway/internal/handlers"
	"dag-trigger-gateway/internal/invoker"
	"dag-trigger-gateway/internal/metrics"
	"dag-trigger-gateway/internal/repository"
	"dag-trigger-gateway/internal/scheduler"
	"dag-trigger-gateway/internal/secrets"
	"dag-trigger-gateway/internal/server"
	"dag-trigger-gateway/internal/trigger"
)

// Run initializes and starts the gateway
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting DAG Trigger Gateway")

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Database credentials may live in Secret Manager rather than the
	// environment; fill them in before validation.
	if cfg.Database.Password == "" && cfg.Composer.Project != "" {
		store, err := secrets.NewSecretManagerStore(ctx, cfg.Composer.Project)
		if err != nil {
			return fmt.Errorf("failed to create secret store: %w", err)
		}
		if err := resolveDatabaseSecrets(ctx, store, &cfg.Database); err != nil {
			return fmt.Errorf("failed to resolve database secrets: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := db.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()
	repo := repository.New(dbConn)

	resolver, err := composer.NewResolver(ctx, cfg.Composer)
	if err != nil {
		return fmt.Errorf("failed to create endpoint resolver: %w", err)
	}

	tokens := auth.NewGoogleTokenProvider()
	inv := invoker.New(tokens, cfg.Trigger.IAPTimeout)
	filter := trigger.MatchAllFilter(cfg.Trigger.Match)
	triggerService := trigger.NewService(repo, resolver, inv, filter, cfg.Composer, m)

	sched := scheduler.NewScheduler(&cfg.Stats, repo, m)

	h := handlers.NewHandlers(dbConn, repo, triggerService, sched, m, cfg)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// resolveDatabaseSecrets fills database credentials from the secret store.
// The Cloud SQL instance name is optional; the rest are required.
func resolveDatabaseSecrets(ctx context.Context, store secrets.Store, cfg *config.DatabaseConfig) error {
	required := []struct {
		key string
		dst *string
	}{
		{"DB_USERNAME", &cfg.User},
		{"DB_PASSWORD", &cfg.Password},
		{"DB_NAME", &cfg.DBName},
	}
	for _, s := range required {
		value, err := store.Get(ctx, s.key)
		if err != nil {
			return err
		}
		*s.dst = value
	}

	if name, err := store.Get(ctx, "CLOUD_SQL_PROXY_INSTANCE_CONNECTION_NAME"); err == nil && name != "" {
		cfg.InstanceConnectionName = name
	}
	return nil
}
