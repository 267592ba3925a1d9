package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"  // Платёж авторизован, но не списан
	PaymentStatusCaptured PaymentStatus = "CAPTURED" // Занятие состоялось, деньги списаны
	PaymentStatusRefunded PaymentStatus = "REFUNDED" // Бронирование отменено
	PaymentStatusFailed   PaymentStatus = "FAILED"   // Авторизация платежа не прошла
)

// IsTerminal возвращает true для статусов, из которых нет переходов
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// CanTransition описывает допустимый граф переходов статуса оплаты
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	if s != PaymentStatusPending {
		return false
	}
	switch to {
	case PaymentStatusCaptured, PaymentStatusRefunded, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

type Booking struct {
	ID                  int64         `json:"id"`
	SlotID              int64         `json:"slot_id"`
	StudentID           int64         `json:"student_id"`
	PaymentIntentRef    *string       `json:"payment_intent_ref,omitempty"`
	PaymentStatus       PaymentStatus `json:"payment_status"`
	AmountCents         int64         `json:"amount_cents"`
	PlatformFeeCents    int64         `json:"platform_fee_cents"`
	RefundedCents       int64         `json:"refunded_cents"`
	CancelReason        *string       `json:"cancel_reason,omitempty"`
	RecordingSessionRef *string       `json:"recording_session_ref,omitempty"` // устанавливается один раз
	RecordingLocation   *string       `json:"recording_location,omitempty"`
	TeacherJoinedAt     *time.Time    `json:"teacher_joined_at,omitempty"`
	ConsentCode         string        `json:"-"` // код согласия, известен только родителю
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	Slot *Slot `json:"slot,omitempty"`
}

// RoomName имя комнаты видеосессии для бронирования
func (b *Booking) RoomName() string {
	return BookingRoomName(b.ID)
}

// BookingRoomName и ParseRoomName задают формат имени комнаты (id бронирования)
func BookingRoomName(bookingID int64) string {
	return strconv.FormatInt(bookingID, 10)
}

func ParseRoomName(room string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(room), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid room name %q", room)
	}
	return id, nil
}
