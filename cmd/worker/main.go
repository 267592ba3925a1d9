package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/tutoring_core/internal/app"
	"github.com/Freeeeeet/tutoring_core/internal/config"
	"github.com/Freeeeeet/tutoring_core/internal/gateway/payment"
	"github.com/Freeeeeet/tutoring_core/internal/queue"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.StripeSecretKey == "" {
		log.Fatal("STRIPE_SECRET_KEY is required")
	}

	logger := app.NewLogger(app.LoggerConfig{Env: cfg.Environment, Component: "worker", Level: cfg.LogLevel})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := queue.NewClient(ctx, queue.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	payments := payment.NewStripe(payment.Config{
		SecretKey: cfg.StripeSecretKey,
		Currency:  cfg.Currency,
	}, logger.Named("stripe"))
	if err := payments.CheckCredentials(ctx); err != nil {
		logger.Fatal("Stripe credentials rejected", zap.Error(err))
	}

	retries := queue.NewRetryQueue(redisClient)
	if pending, err := retries.Len(ctx); err == nil {
		logger.Info("Settlement retry queue", zap.Int64("pending", pending))
	}

	scheduler := app.NewScheduler(retries, service.NewSettlementRetrier(payments, retries, logger), cfg.RetryPollInterval, logger)
	scheduler.Run(ctx)
}
