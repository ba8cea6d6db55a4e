package main

import (
	healthgrpc "chat-presence/grpc"
	"chat-presence/infrastructure/rest"
	"chat-presence/internal"
	"chat-presence/moderation"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Deferred cleanups (store, supervisor) always run before the process exits.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage
	store, err := internal.OpenStore(ctx, config, log, time.Now)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...")
		if err := store.Close(); err != nil {
			log.Error("Failed to close store", "error", err)
		}
	}()

	// 4. Moderation
	moderator, err := newModerator(config, log)
	if err != nil {
		return err
	}

	// 5. Supervision & presence reaper
	orchestrator := runtime.NewOrchestrator(log,
		workers.NewSupervisor(log, config.RestartInterval),
		store.Participants, store.Messages,
		config.ReapInterval, config.ParticipantTTL, time.Now)
	workersCtx, cancelWorkers := context.WithCancel(ctx)
	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		_ = orchestrator.Start(workersCtx)
	}()
	defer func() {
		orchestrator.Stop()
		cancelWorkers()
		<-orchestratorDone
	}()

	// 6. HTTP server
	chat := services.NewChatService(log, store.Participants, store.Messages, moderator, time.Now)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           rest.NewRouter(log, chat),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Optional gRPC health server
	var health *healthgrpc.HealthServer
	if config.HealthPort > 0 {
		healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
		listener, err := net.Listen("tcp", healthAddress)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
		}
		health = healthgrpc.NewHealthServer(log)
		go func() {
			if err := health.Serve(listener); err != nil {
				errChan <- fmt.Errorf("gRPC health server error: %w", err)
			}
		}()
	}

	fmt.Println(color.New(color.BgBlack, color.FgGreen).
		Render(fmt.Sprintf("  Chat room running on http://%s (store: %s)  ", address, config.StoreDriver)))

	// 8. Wait for Stop or Error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
	}

	// 9. Final Cleanup
	if health != nil {
		health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	log.Info("Program stopped cleanly")

	return serveErr
}

func newModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	dictionary, err := config.Vocabulary()
	if err != nil {
		return nil, err
	}
	if len(dictionary.Languages) > 0 {
		log.Info(fmt.Sprintf("%d censored files loaded [%s]",
			len(dictionary.Languages), strings.Join(dictionary.Languages, ",")))
	}
	words := dictionary.Words
	if len(words) == 0 {
		return nil, nil
	}
	mask, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	moderator, err := moderation.NewModerator(words, mask, log)
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d censored words loaded", len(words)))
	return moderator, nil
}
