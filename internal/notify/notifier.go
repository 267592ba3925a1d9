// Package notify доставляет уведомления участникам бронирований.
// Отправка асинхронная: ошибки доставки только логируются и не влияют на операции.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// ChatDirectory ищет Telegram чаты участников
type ChatDirectory interface {
	TeacherChatID(ctx context.Context, teacherID int64) (*int64, error)
	ParentChatIDByStudent(ctx context.Context, studentID int64) (*int64, error)
}

// Sender часть API бота, нужная для отправки
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram отправляет уведомления через бота
type Telegram struct {
	sender Sender
	chats  ChatDirectory
	logger *zap.Logger
	// wait вызывается по завершении каждой отправки, используется в тестах
	wait func()
}

func NewTelegram(sender Sender, chats ChatDirectory, logger *zap.Logger) *Telegram {
	return &Telegram{
		sender: sender,
		chats:  chats,
		logger: logger,
		wait:   func() {},
	}
}

// BookingConfirmed сообщает родителю о бронировании и код согласия, учителю о новом занятии
func (t *Telegram) BookingConfirmed(booking *model.Booking, slot *model.Slot) {
	parentText := fmt.Sprintf(
		"✅ Занятие забронировано\n\n"+
			"📅 %s (%s)\n"+
			"💰 %s\n\n"+
			"🔑 Код согласия: %s\n"+
			"Сообщите его учителю, только если согласны перенести занятие.",
		FormatDateTime(slot.StartTime), FormatTimeRange(slot.StartTime, slot.EndTime),
		FormatAmount(booking.AmountCents),
		booking.ConsentCode,
	)
	teacherText := fmt.Sprintf(
		"📚 Новая запись на занятие\n\n📅 %s (%s)",
		FormatDateTime(slot.StartTime), FormatTimeRange(slot.StartTime, slot.EndTime),
	)

	t.dispatch("booking_confirmed", func(ctx context.Context) {
		t.sendToParent(ctx, booking.StudentID, parentText)
		t.sendToTeacher(ctx, slot.TeacherID, teacherText)
	})
}

// CancellationNotice сообщает обеим сторонам об отмене и размере возврата
func (t *Telegram) CancellationNotice(booking *model.Booking, slot *model.Slot, info model.RefundInfo) {
	text := fmt.Sprintf(
		"❌ Занятие %s отменено\n\n"+
			"💸 Возврат: %d%% (%s из %s)",
		FormatDateTime(slot.StartTime),
		info.RefundPercent, FormatAmount(info.RefundCents), FormatAmount(info.AmountCents),
	)

	t.dispatch("cancellation_notice", func(ctx context.Context) {
		t.sendToParent(ctx, booking.StudentID, text)
		t.sendToTeacher(ctx, slot.TeacherID, text)
	})
}

// StrikeWarning предупреждает учителя о страйке или блокировке
func (t *Telegram) StrikeWarning(teacherID int64, state model.TeacherConductState) {
	var text string
	if state.IsSuspended {
		text = fmt.Sprintf(
			"⛔️ У вас %d %s, аккаунт заблокирован.\n"+
				"Новые слоты и записи недоступны до решения администратора.",
			state.StrikeCount, PluralizeStrikes(state.StrikeCount),
		)
	} else {
		text = fmt.Sprintf(
			"⚠️ Вы получили страйк за отмену занятия.\n"+
				"Сейчас у вас %d %s, при %d аккаунт будет заблокирован.",
			state.StrikeCount, PluralizeStrikes(state.StrikeCount), model.SuspensionThreshold,
		)
	}

	t.dispatch("strike_warning", func(ctx context.Context) {
		t.sendToTeacher(ctx, teacherID, text)
	})
}

func (t *Telegram) dispatch(kind string, fn func(ctx context.Context)) {
	go func() {
		defer t.wait()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("Notification panicked", zap.String("kind", kind), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (t *Telegram) sendToTeacher(ctx context.Context, teacherID int64, text string) {
	chatID, err := t.chats.TeacherChatID(ctx, teacherID)
	if err != nil {
		t.logger.Warn("Failed to resolve teacher chat", zap.Int64("teacher_id", teacherID), zap.Error(err))
		return
	}
	t.send(ctx, chatID, text)
}

func (t *Telegram) sendToParent(ctx context.Context, studentID int64, text string) {
	chatID, err := t.chats.ParentChatIDByStudent(ctx, studentID)
	if err != nil {
		t.logger.Warn("Failed to resolve parent chat", zap.Int64("student_id", studentID), zap.Error(err))
		return
	}
	t.send(ctx, chatID, text)
}

func (t *Telegram) send(ctx context.Context, chatID *int64, text string) {
	if chatID == nil {
		return
	}

	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *chatID,
		Text:   text,
	})
	if err != nil {
		t.logger.Warn("Failed to send notification", zap.Int64("chat_id", *chatID), zap.Error(err))
	}
}

// Nop используется, когда бот не настроен
type Nop struct{}

func (Nop) BookingConfirmed(*model.Booking, *model.Slot) {}
func (Nop) CancellationNotice(*model.Booking, *model.Slot, model.RefundInfo) {}
func (Nop) StrikeWarning(int64, model.TeacherConductState) {}
