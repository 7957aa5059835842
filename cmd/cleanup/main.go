// Command cleanup runs a single purge pass over expired transfers,
// using the same configuration and cutoff semantics as the in-service
// sweeper.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	infra "github.com/fasttransfer/relay/internal/infrastructure/repository"
	"github.com/fasttransfer/relay/internal/usecase"
	"github.com/fasttransfer/relay/pkg/config"
)

func main() {
	var grace time.Duration
	flag.DurationVar(&grace, "grace", -1, "extra buffer past expiry before deletion (default: config value)")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.NewManager().Load(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if grace < 0 {
		grace = cfg.Cleanup.GraceWindow
	}

	metadata, err := infra.NewSQLiteMetadata(cfg.Storage.Database)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer metadata.Close()

	storage, err := infra.NewDiskStorage(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatal("Failed to open storage:", err)
	}

	transfers := usecase.NewTransferUseCase(metadata, storage, usecase.Limits{})
	cleanup := usecase.NewCleanupUseCase(transfers, grace)

	deleted, err := cleanup.RunOnce(context.Background(), time.Now())
	if err != nil {
		log.Fatal("Cleanup failed:", err)
	}
	log.Printf("Cleanup finished: %d transfers deleted", deleted)
}
