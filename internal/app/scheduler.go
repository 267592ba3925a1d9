package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"go.uber.org/zap"
)

// JobSource источник отложенных заданий расчёта
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*model.SettlementJob, error)
}

// JobProcessor выполняет одно задание
type JobProcessor interface {
	Process(ctx context.Context, job model.SettlementJob) error
}

// Scheduler фоновый цикл, который разбирает очередь повторов
type Scheduler struct {
	source    JobSource
	processor JobProcessor
	interval  time.Duration
	logger    *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewScheduler(source JobSource, processor JobProcessor, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		source:    source,
		processor: processor,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start запускает цикл в отдельной горутине
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting settlement retry scheduler", zap.Duration("poll_interval", s.interval))
	go s.Run(ctx)
}

// Stop останавливает цикл и ждёт завершения текущего задания
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping settlement retry scheduler")
		close(s.stopChan)
	})
	<-s.done
}

// Run блокирует до отмены контекста или Stop
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if ctx.Err() != nil {
			s.logger.Info("Settlement retry scheduler stopped")
			return
		}

		job, err := s.source.Dequeue(ctx, s.interval)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("Failed to dequeue settlement job", zap.Error(err))
			s.pause(ctx)
			continue
		}
		if job == nil {
			continue
		}

		if err := s.processor.Process(ctx, *job); err != nil {
			s.logger.Error("Failed to process settlement job",
				zap.String("job_id", job.ID),
				zap.Int64("booking_id", job.BookingID),
				zap.Error(err),
			)
		}
	}
}

func (s *Scheduler) pause(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
