package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type telegramLinker interface {
	LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error)
}

// BotController бот уведомлений: привязка чата по коду и справка
type BotController struct {
	bot    *bot.Bot
	users  telegramLinker
	logger *zap.Logger
}

func NewBotController(botInstance *bot.Bot, users *service.UserService, logger *zap.Logger) *BotController {
	return &BotController{
		bot:    botInstance,
		users:  users,
		logger: logger,
	}
}

// RegisterHandlers регистрирует обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	// /start <код> приходит из deep link, поэтому prefix
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleHelp)

	return c.setCommands(ctx)
}

func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🔗 Подключить уведомления"},
		{Command: "help", Description: "❓ Как это работает"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start блокирует до отмены контекста
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting notification bot")
	c.bot.Start(ctx)
}

func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, b, update.Message.Chat.ID, c.startReply(ctx, update.Message.Text, update.Message.Chat.ID))
}

func (c *BotController) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	c.reply(ctx, b, update.Message.Chat.ID, helpText)
}

const (
	welcomeText = "👋 Здравствуйте!\n\n" +
		"Этот бот присылает уведомления о занятиях: подтверждения бронирований, отмены и страйки.\n\n" +
		"Чтобы подключить уведомления, получите код в приложении и отправьте:\n/start КОД"

	helpText = "📚 Как подключить уведомления:\n\n" +
		"1. В приложении откройте настройки и запросите код для Telegram\n" +
		"2. Отправьте боту /start КОД в течение 15 минут\n\n" +
		"После этого уведомления будут приходить в этот чат."
)

// startReply привязывает чат, если в команде есть код
func (c *BotController) startReply(ctx context.Context, text string, chatID int64) string {
	code := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "/start"))
	if code == "" {
		return welcomeText
	}

	user, err := c.users.LinkTelegram(ctx, code, chatID)
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			return "❌ Код недействителен или истёк. Запросите новый код в приложении."
		}
		c.logger.Error("Failed to link telegram chat", zap.Int64("chat_id", chatID), zap.Error(err))
		return "❌ Произошла ошибка. Попробуйте позже."
	}

	return fmt.Sprintf("✅ %s, уведомления подключены.\n\nСюда будут приходить подтверждения, отмены и предупреждения.", user.DisplayName)
}

func (c *BotController) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
