package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"datachat-be/internal/bootstrap"
	"datachat-be/internal/config"
	"datachat-be/internal/server"
	"datachat-be/internal/tracer"
	"datachat-be/pkg/database"
)

func main() {
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer(cfg.App.OtlpEndpoint)
	defer shutdownTracer(context.Background())

	// Semantic memory is optional: without a database the pipeline runs
	// with recall disabled.
	var gormDB *gorm.DB
	if cfg.Memory.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Memory.Connection)
		if err != nil {
			log.Printf("[WARN] Unable to connect to memory store DB: %v", err)
		} else {
			gormDB = db
		}
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	if container.MemoryWriterService != nil {
		go func() {
			log.Println("Background: starting memory writer...")
			if err := container.MemoryWriterService.Consume(context.Background()); err != nil {
				log.Printf("Background memory writer error: %v", err)
			}
		}()
	}

	if container.SchemaBootstrapService != nil {
		go func() {
			log.Println("Background: memorizing index schemas...")
			if err := container.SchemaBootstrapService.Run(context.Background()); err != nil {
				log.Printf("Background schema bootstrap error: %v", err)
			}
		}()
	}

	srv := server.New(cfg, container)

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := srv.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	container.Logger.Sync()
}
