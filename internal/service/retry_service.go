package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	// MaxJobRounds сколько раз задание возвращается в очередь, прежде чем его бросить
	MaxJobRounds = 10

	retryAttemptsPerRound = 5
	retryBaseDelay        = 500 * time.Millisecond
)

// SettlementRetrier повторяет отложенные вызовы платёжного шлюза
type SettlementRetrier struct {
	payments PaymentGateway
	queue    RetryQueue
	logger   *zap.Logger
	backoff  func() retry.Backoff
	clock    func() time.Time
}

func NewSettlementRetrier(payments PaymentGateway, queue RetryQueue, logger *zap.Logger) *SettlementRetrier {
	return &SettlementRetrier{
		payments: payments,
		queue:    queue,
		logger:   logger,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(retryAttemptsPerRound-1, retry.NewExponential(retryBaseDelay))
		},
		clock: time.Now,
	}
}

// Process выполняет задание с экспоненциальной задержкой.
// Если все попытки раунда исчерпаны, задание возвращается в очередь.
func (r *SettlementRetrier) Process(ctx context.Context, job model.SettlementJob) error {
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := applyJob(ctx, r.payments, job)
		if err == nil || errors.Is(err, errUnknownJobKind) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil {
		r.logger.Info("Settlement job completed",
			zap.String("job_id", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int64("booking_id", job.BookingID),
		)
		return nil
	}

	if errors.Is(err, errUnknownJobKind) {
		r.logger.Error("Settlement job dropped", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	// Задание уже снято с очереди, при остановке воркера его надо вернуть
	if ctx.Err() != nil {
		r.logger.Warn("Worker stopping, returning settlement job to queue",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
		)
		return r.requeue(ctx, job)
	}

	job.Attempt++
	if job.Attempt >= MaxJobRounds {
		r.logger.Error("Settlement job dropped after max rounds",
			zap.String("job_id", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int64("booking_id", job.BookingID),
			zap.String("intent_ref", job.IntentRef),
			zap.Error(err),
		)
		return nil
	}

	r.logger.Warn("Settlement job failed, requeueing",
		zap.String("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
		zap.Error(err),
	)
	return r.requeue(ctx, job)
}

func (r *SettlementRetrier) requeue(ctx context.Context, job model.SettlementJob) error {
	if err := enqueueJob(ctx, r.queue, job, r.clock()); err != nil {
		r.logger.Error("Failed to requeue settlement job",
			zap.String("job_id", job.ID),
			zap.String("kind", string(job.Kind)),
			zap.Int64("booking_id", job.BookingID),
			zap.String("intent_ref", job.IntentRef),
			zap.Error(err),
		)
		return fmt.Errorf("requeue settlement job: %w", err)
	}
	return nil
}
