package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/fasttransfer/relay/internal/adapter/handler"
	infra "github.com/fasttransfer/relay/internal/infrastructure/repository"
	"github.com/fasttransfer/relay/internal/usecase"
	"github.com/fasttransfer/relay/pkg/config"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	manager := config.NewManager()
	cfg, err := manager.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	metadata, err := infra.NewSQLiteMetadata(cfg.Storage.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer metadata.Close()

	storage, err := infra.NewDiskStorage(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	transfers := usecase.NewTransferUseCase(metadata, storage, limitsFrom(cfg))
	archive := usecase.NewArchiveUseCase(transfers, storage)
	cleanup := usecase.NewCleanupUseCase(transfers, cfg.Cleanup.GraceWindow)

	// Limit edits in the config file apply to the running service
	manager.Watch(func(c *config.Config) {
		transfers.SetLimits(limitsFrom(c))
		log.Printf("transfer limits reloaded")
	})
	if watcher, err := config.NewWatcher(manager); err != nil {
		log.Printf("config watcher disabled: %v", err)
	} else if err := watcher.Start(configPath); err != nil {
		log.Printf("config watcher disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Cleanup.Enabled {
		go cleanup.Start(ctx, cfg.Cleanup.Interval)
	} else {
		log.Printf("cleanup: disabled")
	}

	router := gin.Default()
	handler.NewTransferHandler(transfers, archive, cleanup, cfg.API.Key).RegisterRoutes(router)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func limitsFrom(cfg *config.Config) usecase.Limits {
	return usecase.Limits{
		MaxFileSize:  cfg.Transfer.MaxFileSize,
		MaxFiles:     cfg.Transfer.MaxFiles,
		AllowedTypes: cfg.Transfer.AllowedTypes,
		Retention:    cfg.Transfer.Retention,
	}
}
