package main

import (
	"context"
	"errors"
	"fitpulse-chat/auth"
	"fitpulse-chat/contract"
	admin "fitpulse-chat/infrastructure/grpc"
	"fitpulse-chat/internal"
	"fitpulse-chat/pubsub"
	"fitpulse-chat/search"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	brokerRetryAttempts = 5
	brokerRetryDelay    = time.Second
	shutdownTimeout     = 10 * time.Second
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run owns every resource so deferred cleanups execute before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	// A .env file is optional, real environment variables win.
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if _, err := internal.CharacterRune(config.CharReplacement); err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	debug := logger.Enabled(ctx, slog.LevelDebug)

	// 2. Storage
	db, err := badger.Open(buildBadgerOpts(config, debug))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := search.OpenIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open search index: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	// 3. Offline notifications
	publisher, err := buildPublisher(ctx, config, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("broker connection failed: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	// 4. Orchestration
	orchestrator, err := internal.NewOrchestrator(logger, config, db, index, publisher, auth.NewTokenService(config.JWTSecret))
	if err != nil {
		return exitConfig, err
	}

	errChan := make(chan error, 2)
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		orchestrator.Start(ctx)
	}()

	// 5. Admin gRPC health
	adminAddress := fmt.Sprintf("%s:%d", config.Host, config.AdminPort)
	adminListener, err := net.Listen("tcp", adminAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", adminAddress, err)
	}
	adminServer := admin.NewAdminServer(logger)
	go func() {
		if err := adminServer.Serve(adminListener); err != nil {
			errChan <- err
		}
	}()

	// 6. HTTP and websocket
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	orchestrator.Server().Register(app)
	internal.RegisterDebugRoutes(app, db, orchestrator.Monitoring(), debug)
	if debug {
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://%s:%d/debug/inspect", config.Host, config.Port))
	}

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	go func() {
		logger.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()
	adminServer.SetServing(true)

	// 7. Wait for Stop or Error
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
	}

	// 8. Graceful shutdown: stop accepting, close live connections, drain workers.
	// Hijacked websockets are not tracked by fasthttp, the chat server closes them
	// itself and waits until their offline presence is written.
	logger.Info("Shutting down gracefully...")
	adminServer.SetServing(false)
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	closeCtx, cancelClose := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := orchestrator.Server().Shutdown(closeCtx); err != nil {
		logger.Warn("Live connections not drained", "error", err)
	}
	cancelClose()
	adminServer.Stop()
	orchestrator.Stop()
	<-workersDone
	logger.Info("Program stopped cleanly")

	if runErr != nil {
		return exitRuntime, runErr
	}
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, debug bool) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if debug {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}

// buildPublisher falls back to logging notifications when no broker is configured.
func buildPublisher(ctx context.Context, config internal.Config, logger *slog.Logger) (contract.IPublisher, error) {
	if config.AMQPURL == "" {
		logger.Warn("AMQP_URL not set, offline notifications are only logged")
		return pubsub.NewLogPublisher(logger), nil
	}
	publisher, err := pubsub.New(ctx, pubsub.ConnectionOptions{
		URL:           config.AMQPURL,
		RetryAttempts: brokerRetryAttempts,
		Delay:         brokerRetryDelay,
		Logger:        logger,
	}, config.AMQPExchange)
	if errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("interrupted while dialing broker: %w", err)
	}
	return publisher, err
}
