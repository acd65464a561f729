package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrirent/internal/api"
	"agrirent/internal/config"
	"agrirent/internal/database"
	"agrirent/internal/domain"
	"agrirent/internal/events"
	"agrirent/internal/google"
	"agrirent/internal/logging"
	"agrirent/internal/metrics"
	"agrirent/internal/notify"
	"agrirent/internal/payment"
	"agrirent/internal/repository"
	"agrirent/internal/service"
	"agrirent/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := events.NewEventBus()
	eventBus.OnError(func(event *events.Event, err error) {
		logger.Warn().Err(err).Str("event", event.Type).Msg("event handler failed")
	})
	initNotifier(cfg, eventBus, &logger)

	var syncWorker domain.SyncWorker
	if sheetsWorker := initSheets(ctx, cfg, db, redisClient, &logger); sheetsWorker != nil {
		syncWorker = sheetsWorker
	}

	svc, err := buildServices(cfg, db, redisClient, eventBus, syncWorker, &logger)
	if err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, svc, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	items, err := config.LoadEquipment(cfg.Catalog.SeedFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info().Str("seed_file", cfg.Catalog.SeedFile).Msg("no seed catalog, skipping")
	case err != nil:
		_ = db.Close()
		return nil, err
	default:
		if err := db.SyncEquipment(ctx, items); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed equipment: %w", err)
		}
		logger.Info().Int("count", len(items)).Msg("seed catalog loaded")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled() {
		return
	}

	bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	notify.NewTelegramNotifier(bot, cfg.Telegram.ChatID, logger).Subscribe(bus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func initSheets(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx,
		cfg.Google.CredentialsFile,
		cfg.Google.BookingSpreadsheetID,
		cfg.Google.BookingSheetName,
		logger,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		email, _ := google.ServiceAccountEmail(cfg.Google.CredentialsFile)
		logger.Warn().Err(err).Str("share_with", email).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("write ledger header")
	}
	go sheetsService.Start(ctx)

	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.RetryPolicyFromConfig(cfg.Google.SyncRetry), logger)
	go sheetsWorker.Start(ctx)

	logger.Info().Msg("google sheets connected")
	return sheetsWorker
}

func buildServices(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	eventBus *events.EventBus,
	syncWorker domain.SyncWorker,
	logger *zerolog.Logger,
) (api.Services, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return api.Services{}, err
	}
	clock := service.SystemClock{Location: loc}

	draftTTL := time.Duration(cfg.Booking.DraftTTL) * time.Second
	var stateRepo domain.StateRepository = repository.NewMemoryStateRepository(draftTTL)
	var idempotency payment.IdempotencyStore = payment.NewMemoryIdempotencyStore(cfg.Payment.IdempotencyWindow())
	if redisClient != nil {
		stateRepo = repository.NewFailoverStateRepository(
			repository.NewRedisStateRepository(redisClient, draftTTL),
			stateRepo,
			logger,
		)
		idempotency = payment.NewRedisIdempotencyStore(redisClient, cfg.Payment.IdempotencyWindow())
	}

	processor := payment.NewProcessor(
		payment.NewSimulatedGateway(time.Duration(cfg.Payment.DelayMillis)*time.Millisecond, logging.Component(logger, "payment")),
		idempotency,
		logger,
	)

	users := service.NewUserService(db, cfg.Admins, logging.Component(logger, "users"))
	bookings := service.NewBookingService(db, processor, eventBus, syncWorker, users, service.BookingOptions{
		MaxBookingDays: cfg.Booking.MaxBookingDays,
		MaxRentalDays:  cfg.Booking.MaxRentalDays,
		Clock:          clock,
	}, logging.Component(logger, "bookings"))
	equipment := service.NewEquipmentService(db, users,
		time.Duration(cfg.Catalog.CacheTTL)*time.Second, logging.Component(logger, "equipment"))
	drafts := service.NewDraftService(stateRepo,
		cfg.Booking.RateLimitRequests,
		time.Duration(cfg.Booking.RateLimitWindow)*time.Second,
		logging.Component(logger, "drafts"))

	return api.Services{
		Bookings:  bookings,
		Equipment: equipment,
		Users:     users,
		Drafts:    drafts,
		Clock:     clock,
	}, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
