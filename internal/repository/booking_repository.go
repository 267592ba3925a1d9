package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSlotBooked у слота уже есть активное бронирование
var ErrSlotBooked = errors.New("slot already has an active booking")

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

const bookingColumns = `
	id, slot_id, student_id, payment_intent_ref, payment_status, amount_cents,
	platform_fee_cents, refunded_cents, cancel_reason, recording_session_ref,
	recording_location, teacher_joined_at, consent_code, created_at, updated_at
`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.StudentID,
		&b.PaymentIntentRef,
		&b.PaymentStatus,
		&b.AmountCents,
		&b.PlatformFeeCents,
		&b.RefundedCents,
		&b.CancelReason,
		&b.RecordingSessionRef,
		&b.RecordingLocation,
		&b.TeacherJoinedAt,
		&b.ConsentCode,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create создаёт бронирование в статусе PENDING
func (r *BookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (slot_id, student_id, payment_status, amount_cents, platform_fee_cents, consent_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		booking.SlotID,
		booking.StudentID,
		booking.PaymentStatus,
		booking.AmountCents,
		booking.PlatformFeeCents,
		booking.ConsentCode,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		if base.HasCode(err, base.CodeUniqueViolation) {
			return ErrSlotBooked
		}
		return fmt.Errorf("create booking: %w", err)
	}

	return nil
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// GetByPaymentIntent получает бронирование по ссылке на платёж
func (r *BookingRepository) GetByPaymentIntent(ctx context.Context, intentRef string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_intent_ref = $1`

	booking, err := scanBooking(r.QueryRow(ctx, query, intentRef))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by payment intent: %w", err)
	}

	return booking, nil
}

// SetPaymentIntent сохраняет ссылку на авторизованный платёж (только один раз)
func (r *BookingRepository) SetPaymentIntent(ctx context.Context, id int64, intentRef string) error {
	query := `
		UPDATE bookings
		SET payment_intent_ref = $1, updated_at = NOW()
		WHERE id = $2 AND payment_intent_ref IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, intentRef, id)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("payment intent already set for booking %d", id)
	}

	return nil
}

// TransitionStatus меняет статус оплаты, только если текущий статус равен from
func (r *BookingRepository) TransitionStatus(ctx context.Context, id int64, from, to model.PaymentStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("invalid payment status transition %s -> %s", from, to)
	}

	query := `
		UPDATE bookings
		SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status = $3
	`

	affected, err := r.ExecAffected(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("transition payment status: %w", err)
	}

	return affected == 1, nil
}

// MarkRefunded переводит PENDING -> REFUNDED вместе с суммой возврата и причиной
func (r *BookingRepository) MarkRefunded(ctx context.Context, id int64, refundedCents int64, reason string) (bool, error) {
	query := `
		UPDATE bookings
		SET payment_status = 'REFUNDED', refunded_cents = $1, cancel_reason = $2, updated_at = NOW()
		WHERE id = $3 AND payment_status = 'PENDING'
	`

	affected, err := r.ExecAffected(ctx, query, refundedCents, reason, id)
	if err != nil {
		return false, fmt.Errorf("mark booking refunded: %w", err)
	}

	return affected == 1, nil
}

// ClaimRecording занимает право запуска записи, пока ссылка на запись пуста
func (r *BookingRepository) ClaimRecording(ctx context.Context, id int64, placeholder string) (bool, error) {
	query := `
		UPDATE bookings
		SET recording_session_ref = $1, updated_at = NOW()
		WHERE id = $2 AND recording_session_ref IS NULL
	`

	affected, err := r.ExecAffected(ctx, query, placeholder, id)
	if err != nil {
		return false, fmt.Errorf("claim recording: %w", err)
	}

	return affected == 1, nil
}

// ReplaceRecordingRef заменяет временную метку на настоящую ссылку на запись
func (r *BookingRepository) ReplaceRecordingRef(ctx context.Context, id int64, placeholder, sessionRef string) (bool, error) {
	query := `
		UPDATE bookings
		SET recording_session_ref = $1, updated_at = NOW()
		WHERE id = $2 AND recording_session_ref = $3
	`

	affected, err := r.ExecAffected(ctx, query, sessionRef, id, placeholder)
	if err != nil {
		return false, fmt.Errorf("replace recording ref: %w", err)
	}

	return affected == 1, nil
}

// ClearRecordingClaim снимает временную метку после неудачного запуска записи
func (r *BookingRepository) ClearRecordingClaim(ctx context.Context, id int64, placeholder string) error {
	query := `
		UPDATE bookings
		SET recording_session_ref = NULL, updated_at = NOW()
		WHERE id = $1 AND recording_session_ref = $2
	`

	if _, err := r.ExecAffected(ctx, query, id, placeholder); err != nil {
		return fmt.Errorf("clear recording claim: %w", err)
	}

	return nil
}

// MarkTeacherJoined фиксирует первый вход учителя
func (r *BookingRepository) MarkTeacherJoined(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE bookings
		SET teacher_joined_at = $1, updated_at = NOW()
		WHERE id = $2 AND teacher_joined_at IS NULL
	`

	if _, err := r.ExecAffected(ctx, query, at, id); err != nil {
		return fmt.Errorf("mark teacher joined: %w", err)
	}

	return nil
}

// SetRecordingLocation сохраняет место хранения записи
func (r *BookingRepository) SetRecordingLocation(ctx context.Context, id int64, location string) error {
	query := `
		UPDATE bookings
		SET recording_location = $1, updated_at = NOW()
		WHERE id = $2
	`

	affected, err := r.ExecAffected(ctx, query, location, id)
	if err != nil {
		return fmt.Errorf("set recording location: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("booking %d not found", id)
	}

	return nil
}
