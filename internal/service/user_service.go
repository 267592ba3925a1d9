package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"go.uber.org/zap"
)

const (
	LinkCodeTTL    = 15 * time.Minute
	linkCodeLength = 8
	// без похожих символов 0/O и 1/I
	linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// TelegramLink одноразовый код для команды /start
type TelegramLink struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UserService struct {
	users  UserStore
	codes  LinkCodeStore
	logger *zap.Logger
	clock  func() time.Time
}

func NewUserService(users UserStore, codes LinkCodeStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		codes:  codes,
		logger: logger,
		clock:  time.Now,
	}
}

// IssueTelegramLink выдаёт пользователю код привязки Telegram чата
func (s *UserService) IssueTelegramLink(ctx context.Context, userID int64) (*TelegramLink, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	code, err := newLinkCode()
	if err != nil {
		return nil, fmt.Errorf("generate link code: %w", err)
	}

	if err := s.codes.Save(ctx, code, userID, LinkCodeTTL); err != nil {
		return nil, fmt.Errorf("save link code: %w", err)
	}

	return &TelegramLink{Code: code, ExpiresAt: s.clock().Add(LinkCodeTTL).UTC()}, nil
}

// LinkTelegram привязывает чат по коду из /start
func (s *UserService) LinkTelegram(ctx context.Context, code string, chatID int64) (*model.User, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, validationf("link code is required")
	}

	userID, ok, err := s.codes.Consume(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("consume link code: %w", err)
	}
	if !ok {
		return nil, validationf("link code is invalid or expired")
	}

	if err := s.users.SetTelegramChat(ctx, userID, chatID); err != nil {
		return nil, fmt.Errorf("link telegram chat: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", userID)
	}

	s.logger.Info("Telegram chat linked",
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
	)

	return user, nil
}

func newLinkCode() (string, error) {
	buf := make([]byte, linkCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = linkCodeAlphabet[int(b)%len(linkCodeAlphabet)]
	}
	return string(buf), nil
}
