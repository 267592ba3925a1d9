package handlers

import (
	"context"

	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
)

const headerStripeSignature = "Stripe-Signature"

type settlementService interface {
	HandleVideoWebhook(ctx context.Context, payload []byte, authHeader string) error
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler принимает события видеоплатформы и платёжного шлюза
type WebhookHandler struct {
	service settlementService
}

func NewWebhookHandler(settlement *service.SettlementService) *WebhookHandler {
	return &WebhookHandler{service: settlement}
}

// Video POST /webhooks/video
func (h *WebhookHandler) Video(c *fiber.Ctx) error {
	if err := h.service.HandleVideoWebhook(c.Context(), c.Body(), c.Get(fiber.HeaderAuthorization)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

// Payment POST /webhooks/payment
func (h *WebhookHandler) Payment(c *fiber.Ctx) error {
	if err := h.service.HandlePaymentWebhook(c.Context(), c.Body(), c.Get(headerStripeSignature)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
