// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/container"
	"github.com/stockapp/stockapp-go/internal/infrastructure/security"
	"github.com/stockapp/stockapp-go/internal/presentation/http/server"
	"github.com/stockapp/stockapp-go/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Create dependency injection container
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// A missing JWT secret would make every HMAC check run against an
	// empty key. Generate a per-process secret instead; backend tokens
	// will not validate until JWT_SECRET is configured properly.
	if config.JWTSecret == "" {
		secret, err := security.GenerateSecureKey(64)
		if err != nil {
			return fmt.Errorf("failed to generate fallback jwt secret: %w", err)
		}
		config.JWTSecret = secret
		logger.Startup().Warn("JWT_SECRET not set, generated ephemeral secret; backend tokens will not validate")
	}

	// Step 2: Begin the analytics readiness handshake. Segment lookups
	// and event delivery hold until it completes or time out on their
	// own ceilings.
	logger.Startup().Info("Starting analytics readiness handshake...")
	appContainer.AnalyticsClient.StartHandshake(ctx, config.ClientReadyInterval, config.ClientReadyMaxAttempts)

	// Step 3: Start the event delivery worker
	logger.Startup().Info("Starting event delivery worker...", "queueSize", config.EventQueueSize)
	appContainer.EventService.Start(ctx)

	// Step 4: Start the flag broadcaster
	logger.Startup().Info("Starting flag broadcaster...")
	go appContainer.FlagBroadcaster.Run()

	// Step 5: Start personalization session eviction
	logger.Startup().Info("Starting session store cleanup...", "ttl", config.SessionTTL, "interval", config.SessionCleanupInterval)
	appContainer.SessionStore.StartCleanup(ctx, config.SessionCleanupInterval)

	// Step 6: Start HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
}
