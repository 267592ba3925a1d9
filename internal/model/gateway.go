package model

import "time"

// AuthorizeRequest параметры авторизации платежа без списания
type AuthorizeRequest struct {
	AmountCents       int64
	PlatformFeeCents  int64
	PayoutDestination string
	Metadata          map[string]string
}

// PayoutLink ссылка на подключение выплат учителя
type PayoutLink struct {
	URL       string `json:"url"`
	AccountID string `json:"account_id"`
}

type PaymentEventKind string

const (
	PaymentEventFailed PaymentEventKind = "payment_failed"
	PaymentEventOther  PaymentEventKind = "other"
)

// PaymentEvent проверенное событие платёжного шлюза
type PaymentEvent struct {
	ID        string
	Kind      PaymentEventKind
	IntentRef string
}

type RecordingEventKind string

const (
	RecordingEventEnded RecordingEventKind = "recording_ended"
	RecordingEventOther RecordingEventKind = "other"
)

// RecordingEvent проверенное событие видеоплатформы
type RecordingEvent struct {
	Kind              RecordingEventKind
	RoomName          string
	SessionRef        string
	RecordingLocation string
}

// SessionGrants права участника в комнате
type SessionGrants struct {
	CanPublish   bool
	CanSubscribe bool
}

type JobKind string

const (
	JobCapture       JobKind = "capture"
	JobCancel        JobKind = "cancel"
	JobRefundPartial JobKind = "refund_partial"
)

// SettlementJob отложенный вызов платёжного шлюза
type SettlementJob struct {
	ID          string    `json:"id"`
	Kind        JobKind   `json:"kind"`
	BookingID   int64     `json:"booking_id"`
	IntentRef   string    `json:"intent_ref"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Attempt     int       `json:"attempt"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}
