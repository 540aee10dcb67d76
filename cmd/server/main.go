// Command server starts the Okapi Bank Simulation API.
//
// Usage:
//
//	go run ./cmd/server [flags]
//
// Flags:
//
//	-port  HTTP port to listen on (default: 8080)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"okapi/banksim-api/internal/api"
	"okapi/banksim-api/internal/store"
	"okapi/banksim-api/internal/webhook"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port")
	flag.Parse()

	// Railway (and most PaaS platforms) inject PORT as an env var.
	// It takes precedence over the -port flag.
	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			*port = p
		}
	}

	// Structured logging — JSON in production, text-friendly in development.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// ── Wire dependencies ─────────────────────────────────────────────────────
	s := store.New()
	notifier := webhook.New(s)
	handler := api.NewHandler(s, notifier)
	router := api.NewRouter(handler)

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "port", *port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
