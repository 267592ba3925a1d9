package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
)

// TxRunner выполняет функцию в одной транзакции БД
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GetByID у всех хранилищ возвращает nil, nil, если запись не найдена.

type SlotStore interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id int64) (*model.Slot, error)
	HasOverlap(ctx context.Context, teacherID int64, start, end time.Time) (bool, error)
	Reserve(ctx context.Context, slotID int64) (bool, error)
	Release(ctx context.Context, slotID int64) error
}

type BookingStore interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetByPaymentIntent(ctx context.Context, intentRef string) (*model.Booking, error)
	SetPaymentIntent(ctx context.Context, id int64, intentRef string) error
	TransitionStatus(ctx context.Context, id int64, from, to model.PaymentStatus) (bool, error)
	MarkRefunded(ctx context.Context, id int64, refundedCents int64, reason string) (bool, error)
	ClaimRecording(ctx context.Context, id int64, placeholder string) (bool, error)
	ReplaceRecordingRef(ctx context.Context, id int64, placeholder, sessionRef string) (bool, error)
	ClearRecordingClaim(ctx context.Context, id int64, placeholder string) error
	MarkTeacherJoined(ctx context.Context, id int64, at time.Time) error
	SetRecordingLocation(ctx context.Context, id int64, location string) error
}

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	SetPayoutAccount(ctx context.Context, id int64, accountID string) error
	SetTelegramChat(ctx context.Context, id int64, chatID int64) error
}

type StudentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Student, error)
}

type ConductStore interface {
	IncrementStrike(ctx context.Context, teacherID int64, threshold int) (*model.TeacherConductState, error)
	Reset(ctx context.Context, teacherID int64) (*model.TeacherConductState, error)
	Get(ctx context.Context, teacherID int64) (*model.TeacherConductState, error)
}

// CancellationLog журнал отмен, по которому считается квота учителя
type CancellationLog interface {
	LockTeacher(ctx context.Context, teacherID int64) error
	CountTeacherInitiatedSince(ctx context.Context, teacherID int64, since time.Time) (int, error)
	Append(ctx context.Context, event *model.CancellationEvent) error
}

// PaymentGateway внешний платёжный шлюз
type PaymentGateway interface {
	Authorize(ctx context.Context, req model.AuthorizeRequest) (string, error)
	Capture(ctx context.Context, intentRef string) error
	Cancel(ctx context.Context, intentRef string) error
	RefundPartial(ctx context.Context, intentRef string, amountCents int64) error
	VerifyWebhookSignature(payload []byte, signature string) bool
	ParseWebhookEvent(payload []byte) (*model.PaymentEvent, error)
	CreatePayoutOnboardingLink(ctx context.Context, teacherID int64, accountID string) (*model.PayoutLink, error)
}

// VideoPlatform внешняя видеоплатформа
type VideoPlatform interface {
	MintAccessToken(identity, roomName string, grants model.SessionGrants, ttl time.Duration) (string, error)
	StartRecording(ctx context.Context, roomName string) (string, error)
	// ParseWebhook проверяет подпись и только потом разбирает тело события
	ParseWebhook(payload []byte, authHeader string) (*model.RecordingEvent, error)
}

// Notifier отправляет уведомления без ожидания результата; ошибки только логируются
type Notifier interface {
	BookingConfirmed(booking *model.Booking, slot *model.Slot)
	CancellationNotice(booking *model.Booking, slot *model.Slot, info model.RefundInfo)
	StrikeWarning(teacherID int64, state model.TeacherConductState)
}

// RetryQueue надёжная очередь повторов вызовов платёжного шлюза
type RetryQueue interface {
	Enqueue(ctx context.Context, job model.SettlementJob) error
}

// LinkCodeStore одноразовые коды привязки Telegram чата
type LinkCodeStore interface {
	Save(ctx context.Context, code string, userID int64, ttl time.Duration) error
	// Consume возвращает владельца кода и удаляет код; false, если кода нет или он истёк
	Consume(ctx context.Context, code string) (int64, bool, error)
}
