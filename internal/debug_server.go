package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StatsProvider feeds the debug endpoint; it must be cheap and lock-light.
type StatsProvider func() map[string]any

// StartDebugServer exposes engine stats on /debug/stats for local
// inspection. It shuts down with the parent context.
func StartDebugServer(ctx context.Context, log *slog.Logger, port int, stats StatsProvider) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats()); err != nil {
			log.Debug("Failed to encode stats", "error", err)
		}
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info("Debug server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
}
