package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"agrirent/internal/config"
	"agrirent/internal/database"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("equipment", "configs/equipment.yaml", "path to equipment.yaml")
		dbPath   = flag.String("db", "./data/agrirent.db", "path to sqlite db")
		dryRun   = flag.Bool("dry-run", false, "validate the seed file without writing")
	)
	flag.Parse()

	items, err := config.LoadEquipment(*seedPath)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no equipment in %s", *seedPath)
	}

	if *dryRun {
		for _, it := range items {
			logger.Info().Int64("id", it.ID).Str("title", it.Title).Str("owner_id", it.OwnerID).
				Float64("price_per_day", it.PricePerDay).Msg("would seed")
		}
		return nil
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.SyncEquipment(ctx, items); err != nil {
		return fmt.Errorf("seed equipment: %w", err)
	}
	logger.Info().Int("count", len(items)).Str("db", *dbPath).Msg("equipment seeded")
	return nil
}
