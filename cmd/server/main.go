package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/app"
	"github.com/Freeeeeet/tutoring_core/internal/config"
	"github.com/Freeeeeet/tutoring_core/internal/controller"
	"github.com/Freeeeeet/tutoring_core/internal/gateway/payment"
	"github.com/Freeeeeet/tutoring_core/internal/gateway/video"
	"github.com/Freeeeeet/tutoring_core/internal/notify"
	"github.com/Freeeeeet/tutoring_core/internal/queue"
	"github.com/Freeeeeet/tutoring_core/internal/repository"
	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := app.NewLogger(app.LoggerConfig{Env: cfg.Environment, Component: "server", Level: cfg.LogLevel})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		return err
	}
	if err := migrator.Up(ctx); err != nil {
		return err
	}
	_ = migrator.Close()

	redisClient, err := queue.NewClient(ctx, queue.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	retries := queue.NewRetryQueue(redisClient)

	payments := payment.NewStripe(payment.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Currency:      cfg.Currency,
		ReturnURL:     cfg.PayoutReturnURL,
		RefreshURL:    cfg.PayoutRefreshURL,
	}, logger.Named("stripe"))
	if err := payments.CheckCredentials(ctx); err != nil {
		return err
	}

	videoPlatform, err := video.NewLiveKit(video.Config{
		URL:             cfg.LiveKitURL,
		APIKey:          cfg.LiveKitAPIKey,
		APISecret:       cfg.LiveKitAPISecret,
		RecordingPrefix: cfg.RecordingBucket,
	}, logger.Named("livekit"))
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(pool)

	var (
		notifier   service.Notifier = notify.Nop{}
		botHandler *bot.Bot
	)
	if cfg.TelegramToken != "" {
		botHandler, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		notifier = notify.NewTelegram(botHandler, users, logger.Named("notify"))
	} else {
		logger.Warn("TELEGRAM_TOKEN is not set, notifications are disabled")
	}

	tx := base.NewTransactor(pool)
	strikes := service.NewStrikeService(repository.NewConductRepository(pool), notifier, logger)
	slots := service.NewSlotService(repository.NewSlotRepository(pool), users, strikes, logger)
	bookingRepo := repository.NewBookingRepository(pool)
	students := repository.NewStudentRepository(pool)
	userService := service.NewUserService(users, queue.NewLinkCodes(redisClient), logger)

	bookings := service.NewBookingService(tx, slots, strikes, bookingRepo, users, students,
		repository.NewCancellationRepository(pool), payments, retries, notifier, cfg.PlatformFeePercent, logger)

	router := controller.NewRouter(controller.Services{
		Slots:      slots,
		Bookings:   bookings,
		Admission:  service.NewAdmissionService(bookingRepo, slots, students, videoPlatform, logger),
		Settlement: service.NewSettlementService(tx, bookingRepo, slots, payments, videoPlatform, retries, logger),
		Strikes:    strikes,
		Payouts:    service.NewPayoutService(users, payments, logger),
		Users:      userService,
	}, cfg.JWTSecret, logger)

	if botHandler != nil {
		botController := controller.NewBotController(botHandler, userService, logger.Named("bot"))
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands were not registered", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.HTTPPort))
		errCh <- router.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	if err := router.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
