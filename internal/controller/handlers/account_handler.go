package handlers

import (
	"context"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
)

type payoutService interface {
	OnboardingLink(ctx context.Context, teacherID int64) (*model.PayoutLink, error)
}

type userService interface {
	IssueTelegramLink(ctx context.Context, userID int64) (*service.TelegramLink, error)
}

// AccountHandler настройки аккаунта: выплаты и Telegram
type AccountHandler struct {
	payouts payoutService
	users   userService
}

func NewAccountHandler(payouts *service.PayoutService, users *service.UserService) *AccountHandler {
	return &AccountHandler{payouts: payouts, users: users}
}

// PayoutOnboarding POST /api/v1/teachers/me/payout-onboarding
func (h *AccountHandler) PayoutOnboarding(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	link, err := h.payouts.OnboardingLink(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(link)
}

// TelegramLink POST /api/v1/me/telegram-link
func (h *AccountHandler) TelegramLink(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	link, err := h.users.IssueTelegramLink(c.Context(), userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(link)
}
