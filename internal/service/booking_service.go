package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/policy"
	"github.com/Freeeeeet/tutoring_core/internal/repository"
	"go.uber.org/zap"
)

const (
	// NoShowGrace сколько ждать учителя после начала занятия, прежде чем считать неявкой
	NoShowGrace = 15 * time.Minute

	maxCancelReasonLength = 500
)

type BookingService struct {
	tx            TxRunner
	slots         *SlotService
	strikes       *StrikeService
	bookings      BookingStore
	users         UserStore
	students      StudentStore
	cancellations CancellationLog
	payments      PaymentGateway
	retries       RetryQueue
	notifier      Notifier
	feePercent    int
	logger        *zap.Logger
	clock         func() time.Time
}

func NewBookingService(
	tx TxRunner,
	slots *SlotService,
	strikes *StrikeService,
	bookings BookingStore,
	users UserStore,
	students StudentStore,
	cancellations CancellationLog,
	payments PaymentGateway,
	retries RetryQueue,
	notifier Notifier,
	feePercent int,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:            tx,
		slots:         slots,
		strikes:       strikes,
		bookings:      bookings,
		users:         users,
		students:      students,
		cancellations: cancellations,
		payments:      payments,
		retries:       retries,
		notifier:      notifier,
		feePercent:    feePercent,
		logger:        logger,
		clock:         time.Now,
	}
}

// CreateBooking бронирует слот для ученика и авторизует платёж без списания
func (s *BookingService) CreateBooking(ctx context.Context, callerID, studentID, slotID int64) (*model.Booking, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil {
		return nil, notFound("student", studentID)
	}
	if student.ParentID != callerID {
		return nil, forbidden("student does not belong to caller")
	}

	slot, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !s.clock().Before(slot.StartTime) {
		return nil, validationf("slot has already started")
	}

	teacher, err := s.users.GetByID(ctx, slot.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, notFound("teacher", slot.TeacherID)
	}
	if teacher.PayoutAccountID == nil || *teacher.PayoutAccountID == "" {
		return nil, validationf("teacher has not completed payout onboarding")
	}

	suspended, err := s.strikes.IsSuspended(ctx, slot.TeacherID)
	if err != nil {
		return nil, err
	}
	if suspended {
		return nil, conflictf("teacher is suspended")
	}

	consentCode, err := newConsentCode()
	if err != nil {
		return nil, fmt.Errorf("generate consent code: %w", err)
	}

	booking := &model.Booking{
		SlotID:           slotID,
		StudentID:        studentID,
		PaymentStatus:    model.PaymentStatusPending,
		AmountCents:      slot.PriceCents,
		PlatformFeeCents: slot.PriceCents * int64(s.feePercent) / 100,
		ConsentCode:      consentCode,
	}

	// Занятие слота и создание бронирования фиксируются вместе
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.slots.Reserve(ctx, slotID); err != nil {
			return err
		}
		return s.bookings.Create(ctx, booking)
	})
	if errors.Is(err, repository.ErrSlotBooked) {
		return nil, conflictf("slot unavailable")
	}
	if err != nil {
		return nil, err
	}

	// Платёжный шлюз вызывается уже после коммита
	intentRef, err := s.payments.Authorize(ctx, model.AuthorizeRequest{
		AmountCents:       booking.AmountCents,
		PlatformFeeCents:  booking.PlatformFeeCents,
		PayoutDestination: *teacher.PayoutAccountID,
		Metadata: map[string]string{
			"booking_id": strconv.FormatInt(booking.ID, 10),
			"slot_id":    strconv.FormatInt(slotID, 10),
			"student_id": strconv.FormatInt(studentID, 10),
			"teacher_id": strconv.FormatInt(slot.TeacherID, 10),
		},
	})
	if err != nil {
		s.logger.Error("Payment authorization failed",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
		s.failBooking(ctx, booking)
		return nil, &ExternalServiceError{Service: servicePayments, Err: err}
	}

	if err := s.bookings.SetPaymentIntent(ctx, booking.ID, intentRef); err != nil {
		s.logger.Error("Failed to store payment intent, releasing authorization",
			zap.Int64("booking_id", booking.ID),
			zap.String("intent_ref", intentRef),
			zap.Error(err),
		)
		s.enqueue(ctx, model.SettlementJob{Kind: model.JobCancel, BookingID: booking.ID, IntentRef: intentRef})
		s.failBooking(ctx, booking)
		return nil, fmt.Errorf("store payment intent: %w", err)
	}
	booking.PaymentIntentRef = &intentRef

	s.logger.Info("Slot booked",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("slot_id", slotID),
		zap.Int64("amount_cents", booking.AmountCents),
		zap.Int64("platform_fee_cents", booking.PlatformFeeCents),
	)

	s.notifier.BookingConfirmed(booking, slot)

	booking.Slot = slot
	return booking, nil
}

// failBooking переводит PENDING -> FAILED и освобождает слот
func (s *BookingService) failBooking(ctx context.Context, booking *model.Booking) {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		ok, err := s.bookings.TransitionStatus(ctx, booking.ID, model.PaymentStatusPending, model.PaymentStatusFailed)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return s.slots.Release(ctx, booking.SlotID)
	})
	if err != nil {
		s.logger.Error("Failed to mark booking as failed",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
		return
	}
	booking.PaymentStatus = model.PaymentStatusFailed
}

// CancelInput запрос на отмену. ClaimedInitiator приходит от клиента и не используется для решений.
type CancelInput struct {
	CallerID                int64
	BookingID               int64
	ClaimedInitiator        model.Initiator
	Reason                  string
	StudentVerificationCode *string
}

// CancelBooking отменяет бронирование, возвращает деньги по политике и при необходимости начисляет страйк
func (s *BookingService) CancelBooking(ctx context.Context, input CancelInput) (*model.RefundInfo, error) {
	booking, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, notFound("booking", input.BookingID)
	}

	slot, err := s.slots.Get(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}

	actor, err := resolveActor(ctx, s.students, input.CallerID, slot, booking)
	if err != nil {
		return nil, err
	}
	if input.ClaimedInitiator != "" && input.ClaimedInitiator != actor.Initiator() {
		s.logger.Warn("Claimed cancellation initiator does not match caller",
			zap.Int64("booking_id", booking.ID),
			zap.String("claimed", string(input.ClaimedInitiator)),
			zap.String("actual", string(actor.Initiator())),
		)
	}

	if booking.PaymentStatus.IsTerminal() {
		return nil, conflictf("booking is already %s", booking.PaymentStatus)
	}

	now := s.clock()
	reason := strings.TrimSpace(input.Reason)
	if runes := []rune(reason); len(runes) > maxCancelReasonLength {
		reason = string(runes[:maxCancelReasonLength])
	}

	isNoShow, err := s.verifyNoShow(actor, reason, booking, slot, now)
	if err != nil {
		return nil, err
	}

	refundCtx := policy.CancellationContext{
		Initiator:        actor.Initiator(),
		HoursBeforeClass: slot.StartTime.Sub(now).Hours(),
		IsNoShow:         isNoShow,
	}
	conductCtx, err := s.conductContext(refundCtx, actor, booking, input.StudentVerificationCode)
	if err != nil {
		return nil, err
	}

	percent := policy.RefundPercent(refundCtx)
	info := model.RefundInfo{
		BookingID:     booking.ID,
		RefundPercent: percent,
		RefundCents:   policy.RefundAmount(booking.AmountCents, percent),
		AmountCents:   booking.AmountCents,
	}

	var strikeState *model.TeacherConductState
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.cancellations.LockTeacher(ctx, slot.TeacherID); err != nil {
			return err
		}
		prior, err := s.cancellations.CountTeacherInitiatedSince(ctx, slot.TeacherID, policy.QuotaWindowStart(now))
		if err != nil {
			return err
		}
		decision := policy.DecideStrike(conductCtx, prior)

		ok, err := s.bookings.MarkRefunded(ctx, booking.ID, info.RefundCents, reason)
		if err != nil {
			return err
		}
		if !ok {
			return conflictf("booking is no longer pending")
		}

		if err := s.slots.Release(ctx, slot.ID); err != nil {
			return err
		}

		err = s.cancellations.Append(ctx, &model.CancellationEvent{
			TeacherID:        slot.TeacherID,
			BookingID:        booking.ID,
			Initiator:        conductCtx.Initiator,
			HoursBeforeClass: refundCtx.HoursBeforeClass,
			RefundPercent:    percent,
			StrikeIssued:     decision.Issue,
			OccurredAt:       now,
		})
		if err != nil {
			return err
		}

		if decision.Issue {
			strikeState, err = s.strikes.record(ctx, slot.TeacherID)
			if err != nil {
				return err
			}
			info.StrikeIssued = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	booking.PaymentStatus = model.PaymentStatusRefunded
	booking.RefundedCents = info.RefundCents

	s.settleCancelledPayment(ctx, booking, info)

	s.logger.Info("Booking canceled",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("caller_id", input.CallerID),
		zap.String("initiator", string(actor.Initiator())),
		zap.Float64("hours_before_class", refundCtx.HoursBeforeClass),
		zap.Int("refund_percent", percent),
		zap.Int64("refund_cents", info.RefundCents),
		zap.Bool("strike_issued", info.StrikeIssued),
	)

	s.notifier.CancellationNotice(booking, slot, info)
	if strikeState != nil {
		s.strikes.warn(slot.TeacherID, *strikeState)
	}

	return &info, nil
}

// verifyNoShow принимает заявление о неявке учителя только от родителя,
// после начала занятия с запасом NoShowGrace и если учитель так и не вошёл
func (s *BookingService) verifyNoShow(actor model.Actor, reason string, booking *model.Booking, slot *model.Slot, now time.Time) (bool, error) {
	if reason != model.CancelReasonTeacherNoShow {
		return false, nil
	}
	if actor.Kind != model.ActorParent {
		return false, validationf("only the student side can report a teacher no-show")
	}
	if now.Before(slot.StartTime.Add(NoShowGrace)) {
		return false, validationf("teacher no-show can be reported %d minutes after the start", int(NoShowGrace.Minutes()))
	}
	if booking.TeacherJoinedAt != nil {
		return false, validationf("teacher has joined this session")
	}
	return true, nil
}

// conductContext определяет, на чьей стороне отмена для учёта страйков.
// Неявка учителя засчитывается учителю, отмена учителем с кодом согласия ученика - ученику.
func (s *BookingService) conductContext(c policy.CancellationContext, actor model.Actor, booking *model.Booking, code *string) (policy.CancellationContext, error) {
	if c.IsNoShow {
		c.Initiator = model.InitiatorTeacher
		return c, nil
	}
	if code == nil || strings.TrimSpace(*code) == "" {
		return c, nil
	}
	if actor.Kind != model.ActorTeacher {
		return c, validationf("student verification code is only accepted from the teacher")
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(*code)), []byte(booking.ConsentCode)) != 1 {
		return c, validationf("invalid student verification code")
	}
	c.Initiator = model.InitiatorStudent
	return c, nil
}

// settleCancelledPayment вызывает шлюз после того, как бронирование уже REFUNDED.
// Ошибки не откатывают отмену, вызов уходит в очередь повторов.
func (s *BookingService) settleCancelledPayment(ctx context.Context, booking *model.Booking, info model.RefundInfo) {
	if booking.PaymentIntentRef == nil {
		return
	}

	job := model.SettlementJob{BookingID: booking.ID, IntentRef: *booking.PaymentIntentRef}
	switch {
	case info.RefundPercent >= policy.FullRefundPercent:
		job.Kind = model.JobCancel
	case info.RefundCents > 0:
		job.Kind = model.JobRefundPartial
		job.AmountCents = info.RefundCents
	default:
		job.Kind = model.JobCapture
	}

	if err := applyJob(ctx, s.payments, job); err != nil {
		s.logger.Error("Payment settlement for cancellation failed, scheduling retry",
			zap.Int64("booking_id", booking.ID),
			zap.String("kind", string(job.Kind)),
			zap.Error(err),
		)
		s.enqueue(ctx, job)
	}
}

func (s *BookingService) enqueue(ctx context.Context, job model.SettlementJob) {
	if err := enqueueJob(ctx, s.retries, job, s.clock()); err != nil {
		s.logger.Error("Failed to enqueue settlement job",
			zap.Int64("booking_id", job.BookingID),
			zap.String("kind", string(job.Kind)),
			zap.Error(err),
		)
	}
}

// newConsentCode шестизначный код согласия ученика
func newConsentCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
