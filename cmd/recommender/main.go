package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campus-dining-be/internal/bootstrap"
	"campus-dining-be/internal/config"
	"campus-dining-be/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()

	// 2. Initialize database
	gormDB, err := database.NewGormDB(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap dependencies (container)
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Probe the embedding generator once before serving; the periodic
	// loop keeps the status current afterwards.
	if !container.EmbeddingProvider.CheckHealth(ctx) {
		log.Println("Embedding generator unhealthy at startup, using local encoder until it recovers")
	}

	// 5. Start background services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(ctx); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()
	go container.ConsumerService.RunBackfillLoop(ctx, cfg.Recommend.BackfillInterval)
	go container.ExperimentService.RunRefreshLoop(ctx, cfg.Recommend.ExperimentRefreshInterval)
	go container.EmbeddingProvider.RunHealthLoop(ctx, cfg.Embedder.HealthInterval)

	// 6. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()
	container.Logger.Sync()
}
