// Command audit scans the booking store for overlapping active bookings and
// optionally rebuilds the spreadsheet ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrirent/internal/config"
	"agrirent/internal/database"
	"agrirent/internal/google"
	"agrirent/internal/logging"
	"agrirent/internal/models"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config file")
	resync := flag.Bool("resync-ledger", false, "rewrite the booking ledger sheet from the database")
	requeue := flag.Bool("requeue-failed", false, "give failed ledger sync tasks a fresh retry budget")
	from := flag.String("from", "", "first booking date to resync (YYYY-MM-DD), default one year back")
	to := flag.String("to", "", "last booking date to resync (YYYY-MM-DD), default one year ahead")
	flag.Parse()

	found, err := run(*configPath, *resync, *requeue, *from, *to)
	if err != nil {
		log.Fatalf("audit failed: %v", err)
	}
	if found > 0 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(configPath string, resync, requeue bool, from, to string) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return 0, fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "audit").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	overlaps, err := db.FindOverlaps(ctx)
	if err != nil {
		return 0, fmt.Errorf("find overlaps: %w", err)
	}
	reportOverlaps(&logger, overlaps)

	if requeue {
		n, err := db.RequeueFailedSyncTasks(ctx)
		if err != nil {
			return len(overlaps), fmt.Errorf("requeue failed tasks: %w", err)
		}
		logger.Info().Int64("tasks", n).Msg("failed sync tasks requeued")
	}

	if resync {
		if err := resyncLedger(ctx, cfg, db, &logger, from, to); err != nil {
			return len(overlaps), err
		}
	}
	return len(overlaps), nil
}

func reportOverlaps(logger *zerolog.Logger, overlaps []models.Overlap) {
	if len(overlaps) == 0 {
		logger.Info().Msg("no overlapping bookings")
		return
	}
	for _, o := range overlaps {
		logger.Warn().
			Int64("equipment_id", o.EquipmentID).
			Int64("first_id", o.First.ID).
			Str("first_dates", o.First.Interval().String()).
			Str("first_status", o.First.Status).
			Int64("second_id", o.Second.ID).
			Str("second_dates", o.Second.Interval().String()).
			Str("second_status", o.Second.Status).
			Msg("overlapping bookings")
	}
	logger.Warn().Int("count", len(overlaps)).Msg("overlap audit finished")
}

func resyncLedger(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger, from, to string) error {
	if !cfg.Google.Enabled() {
		return fmt.Errorf("google sheets is not configured")
	}

	now := time.Now()
	start, end := now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0)
	var err error
	if from != "" {
		if start, err = models.ParseDate(from); err != nil {
			return err
		}
	}
	if to != "" {
		if end, err = models.ParseDate(to); err != nil {
			return err
		}
	}

	bookings, err := db.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadsheetID, cfg.Google.BookingSheetName, logger)
	if err != nil {
		return err
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		return err
	}
	if err := sheets.ReplaceBookingsSheet(ctx, bookings); err != nil {
		return err
	}
	logger.Info().Int("bookings", len(bookings)).Msg("ledger rebuilt")
	return nil
}
