package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketbook/internal/config"
	"pocketbook/internal/database"
	"pocketbook/internal/filestore"
	"pocketbook/internal/logger"
	"pocketbook/internal/notify"
	"pocketbook/internal/server"
	"pocketbook/internal/validator"
)

// @title           Pocketbook API
// @version         1.0
// @description     Pocketbook tracks personal income and expenses across wallets and categories.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ServiceKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	validator.Register()

	// Create database manager
	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("failed to close database: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	sender, err := newSender(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sender.Close(); err != nil {
			log.Warnf("failed to close notification sender: %v", err)
		}
	}()

	router := server.NewRouter(cfg, dbManager.DB(), sender, filestore.NewDisk(cfg.UploadDir))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting Pocketbook backend server on port %s", cfg.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// newSender publishes reset notifications to AMQP when a broker is
// configured and only logs them otherwise.
func newSender(cfg *config.Config) (notify.Sender, error) {
	if cfg.AMQPURL == "" {
		logger.Get().Warn("AMQP_URL not set; password reset links will only be logged")
		return notify.LogSender{}, nil
	}
	sender, err := notify.NewAMQPSender(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPResetQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}
	return sender, nil
}
