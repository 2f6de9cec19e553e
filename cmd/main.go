package main

import (
	"chatter/auth"
	"chatter/infrastructure/ws"
	"chatter/internal"
	"chatter/observability"
	"chatter/repositories"
	"chatter/runtime"
	"chatter/runtime/workers"
	"chatter/services"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.LoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Engine assembly
	registry := runtime.NewRegistry()
	messages := repositories.NewMessageRepository(db, log, config.LimitMessages)
	groups := repositories.NewGroupRepository(db)
	users := repositories.NewUserRepository(db)
	policy := services.NewBlockPolicy(users)

	router := runtime.NewRouter(log, registry, messages, groups, policy)
	receipts := runtime.NewReceipts(log, registry, messages, groups)
	service := services.NewChatService(router, receipts, registry, messages, groups, users, policy)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Background workers
	metrics := observability.NewMonitoringManager(log)
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewPresenceWorker(log, registry, registry.Changes()), metrics)
	go sup.Run(ctx)

	internal.StartDebugServer(ctx, log, config.DebugPort, func() map[string]any {
		return map[string]any{
			"engine":       metrics.Snapshot(),
			"online_users": registry.Online(),
		}
	})

	// 6. WebSocket server
	wsServer := ws.NewServer(log, service, auth.NewAuthenticator(config.JWTSecret), metrics, ws.Options{
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxMessageSize:       config.MaxMessageSize,
		HandshakeTimeout:     config.HandshakeTimeout,
		FrameRate:            config.FrameRate,
		FrameBurst:           config.FrameBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
