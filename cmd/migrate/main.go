package main

import (
	"context"
	"log"

	"github.com/cassidy/journal-core/internal/config"
	"github.com/cassidy/journal-core/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := storage.NewDatabase(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	log.Println("Migrations applied successfully.")
}
