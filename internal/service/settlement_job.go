package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/google/uuid"
)

const enqueueTimeout = 5 * time.Second

var errUnknownJobKind = errors.New("unknown settlement job kind")

// applyJob выполняет один вызов платёжного шлюза
func applyJob(ctx context.Context, payments PaymentGateway, job model.SettlementJob) error {
	switch job.Kind {
	case model.JobCapture:
		return payments.Capture(ctx, job.IntentRef)
	case model.JobCancel:
		return payments.Cancel(ctx, job.IntentRef)
	case model.JobRefundPartial:
		return payments.RefundPartial(ctx, job.IntentRef, job.AmountCents)
	default:
		return fmt.Errorf("%w %q", errUnknownJobKind, job.Kind)
	}
}

// enqueueJob ставит задание в очередь повторов. Отмена запроса или остановка воркера
// не должны терять задание, поэтому контекст отвязан от отмены.
func enqueueJob(ctx context.Context, queue RetryQueue, job model.SettlementJob, now time.Time) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.EnqueuedAt = now.UTC()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	return queue.Enqueue(ctx, job)
}
