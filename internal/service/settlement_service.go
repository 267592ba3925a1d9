package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"go.uber.org/zap"
)

// SettlementService списывает платёж по окончании записи и обрабатывает события шлюза
type SettlementService struct {
	tx       TxRunner
	bookings BookingStore
	slots    *SlotService
	payments PaymentGateway
	video    VideoPlatform
	retries  RetryQueue
	logger   *zap.Logger
	clock    func() time.Time
}

func NewSettlementService(
	tx TxRunner,
	bookings BookingStore,
	slots *SlotService,
	payments PaymentGateway,
	video VideoPlatform,
	retries RetryQueue,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		tx:       tx,
		bookings: bookings,
		slots:    slots,
		payments: payments,
		video:    video,
		retries:  retries,
		logger:   logger,
		clock:    time.Now,
	}
}

// HandleVideoWebhook проверяет подпись события видеоплатформы и обрабатывает окончание записи.
// Ошибка возвращается только при неподтверждённой подлинности.
func (s *SettlementService) HandleVideoWebhook(ctx context.Context, payload []byte, authHeader string) error {
	event, err := s.video.ParseWebhook(payload, authHeader)
	if err != nil {
		s.logger.Warn("Rejected video webhook", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrWebhookAuthenticity, err)
	}

	if event.Kind != model.RecordingEventEnded {
		s.logger.Debug("Ignoring video event", zap.String("room", event.RoomName))
		return nil
	}

	if err := s.HandleRecordingEnded(ctx, event); err != nil {
		s.logger.Error("Failed to process recording end",
			zap.String("room", event.RoomName),
			zap.Error(err),
		)
	}
	return nil
}

// HandleRecordingEnded переводит PENDING -> CAPTURED и списывает платёж.
// Повторная доставка события ничего не меняет.
func (s *SettlementService) HandleRecordingEnded(ctx context.Context, event *model.RecordingEvent) error {
	bookingID, err := model.ParseRoomName(event.RoomName)
	if err != nil {
		return err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return notFound("booking", bookingID)
	}

	if event.RecordingLocation != "" {
		if err := s.bookings.SetRecordingLocation(ctx, booking.ID, event.RecordingLocation); err != nil {
			s.logger.Error("Failed to store recording location", zap.Int64("booking_id", booking.ID), zap.Error(err))
		}
	}

	if booking.PaymentStatus != model.PaymentStatusPending {
		s.logger.Info("Recording ended for settled booking",
			zap.Int64("booking_id", booking.ID),
			zap.String("payment_status", string(booking.PaymentStatus)),
		)
		return nil
	}
	if booking.PaymentIntentRef == nil {
		s.logger.Warn("Recording ended for booking without payment intent", zap.Int64("booking_id", booking.ID))
		return nil
	}

	ok, err := s.bookings.TransitionStatus(ctx, booking.ID, model.PaymentStatusPending, model.PaymentStatusCaptured)
	if err != nil {
		return err
	}
	if !ok {
		// Отмена или другая доставка события успела раньше
		return nil
	}

	job := model.SettlementJob{Kind: model.JobCapture, BookingID: booking.ID, IntentRef: *booking.PaymentIntentRef}
	if err := applyJob(ctx, s.payments, job); err != nil {
		s.logger.Error("Capture failed, scheduling retry",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
		if err := enqueueJob(ctx, s.retries, job, s.clock()); err != nil {
			return fmt.Errorf("enqueue capture: %w", err)
		}
		return nil
	}

	s.logger.Info("Payment captured",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("amount_cents", booking.AmountCents),
	)
	return nil
}

// HandlePaymentWebhook обрабатывает подписанные события платёжного шлюза
func (s *SettlementService) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.payments.VerifyWebhookSignature(payload, signature) {
		s.logger.Warn("Rejected payment webhook")
		return ErrWebhookAuthenticity
	}

	event, err := s.payments.ParseWebhookEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookAuthenticity, err)
	}

	if event.Kind != model.PaymentEventFailed {
		return nil
	}

	if err := s.HandlePaymentFailed(ctx, event.IntentRef); err != nil {
		s.logger.Error("Failed to process payment failure",
			zap.String("intent_ref", event.IntentRef),
			zap.Error(err),
		)
	}
	return nil
}

// HandlePaymentFailed переводит PENDING -> FAILED и освобождает слот
func (s *SettlementService) HandlePaymentFailed(ctx context.Context, intentRef string) error {
	booking, err := s.bookings.GetByPaymentIntent(ctx, intentRef)
	if err != nil {
		return fmt.Errorf("get booking by intent: %w", err)
	}
	if booking == nil {
		s.logger.Warn("Payment failure for unknown intent", zap.String("intent_ref", intentRef))
		return nil
	}

	var failed bool
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.TransitionStatus(ctx, booking.ID, model.PaymentStatusPending, model.PaymentStatusFailed)
		if err != nil || !ok {
			return err
		}
		failed = true
		return s.slots.Release(ctx, booking.SlotID)
	})
	if err != nil {
		return err
	}

	if failed {
		s.logger.Info("Booking payment failed, slot released",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("slot_id", booking.SlotID),
		)
	}
	return nil
}
