package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-rooms/infrastructure/httpapi"
	"chat-rooms/infrastructure/ws"
	"chat-rooms/internal"
	"chat-rooms/moderation"
	"chat-rooms/repositories"
	"chat-rooms/runtime"
	"chat-rooms/runtime/workers"
	"chat-rooms/search"
	"chat-rooms/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting, so every defer (database cleanup included) executes before
// the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Databases (BadgerDB + Bluge index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge index...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & Services
	blockedWords, err := moderation.DefaultWords()
	if err != nil {
		return fmt.Errorf("loading blocked words failed: %w", err)
	}
	moderator, err := moderation.NewModerator(blockedWords, replacement)
	if err != nil {
		return fmt.Errorf("moderator init failed: %w", err)
	}

	messageRepository := repositories.NewMessageRepository(db, log, config.HistoryPageSize)
	roomRepository := repositories.NewRoomRepository(db)
	userRepository := repositories.NewUserRepository(db)
	presenceRepository := repositories.NewPresenceRepository(db)
	userIndex := search.NewUserIndex(blugeWriter, log)

	registry := runtime.NewRegistry(log)
	authService := services.NewAuthService(userRepository, userIndex, config.AuthTokenDuration, log)
	chatService := services.NewChatService(log, registry,
		roomRepository, messageRepository, userRepository, presenceRepository, moderator)
	roomService := services.NewRoomService(log, roomRepository,
		messageRepository, userRepository, userIndex)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(log, registry, config.MetricInterval))
	go sup.Run(ctx)

	// 6. HTTP Server (REST surface + WebSocket endpoint)
	mux := http.NewServeMux()
	httpapi.New(log, authService, roomService).Mount(mux)
	mux.Handle("GET /ws/chat/{room}",
		ws.NewHandler(ctx, log, authService, chatService,
			config.ConnectionBufferSize, config.RecentMessagesLimit))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown failed", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
