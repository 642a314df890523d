package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamcast/internal/config"
	"streamcast/internal/livestream"
	"streamcast/internal/metadata"
	"streamcast/internal/server"
	"streamcast/internal/storage"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("HLS output directory: %s", cfg.HLS.OutputDir)
	log.Printf("Storage bucket: %s (%s)", cfg.Storage.Bucket, cfg.Storage.Region)

	if err := os.MkdirAll(cfg.HLS.OutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create HLS output directory: %v", err)
	}

	if err := livestream.CheckFFmpeg(cfg.HLS.FFmpegPath); err != nil {
		log.Printf("Warning: %v; ingest sessions will fail until ffmpeg is available", err)
	}

	store, err := metadata.New(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to metadata store: %v", err)
	}
	defer store.Close()

	s3Client, err := storage.NewClient(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	publisher := storage.NewPublisher(s3Client, cfg.Storage)

	srv := server.New(cfg, store, publisher)
	srv.RegisterFiberRoutes()

	done := make(chan bool, 1)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Listen(addr); err != nil {
			panic(fmt.Sprintf("http server error: %s", err))
		}
	}()

	go gracefulShutdown(srv, done)

	<-done
	log.Println("Graceful shutdown complete.")
}
