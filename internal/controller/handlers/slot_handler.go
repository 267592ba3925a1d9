package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
)

type slotService interface {
	CreateSlot(ctx context.Context, teacherID int64, input service.CreateSlotInput) (*model.Slot, error)
}

type SlotHandler struct {
	service slotService
}

func NewSlotHandler(slots *service.SlotService) *SlotHandler {
	return &SlotHandler{service: slots}
}

type createSlotRequest struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PriceCents int64     `json:"price_cents"`
}

// CreateSlot POST /api/v1/slots
func (h *SlotHandler) CreateSlot(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createSlotRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return fiber.NewError(fiber.StatusBadRequest, "start and end must be RFC3339 timestamps")
	}

	slot, err := h.service.CreateSlot(c.Context(), userID, service.CreateSlotInput{
		Start:      req.Start,
		End:        req.End,
		PriceCents: req.PriceCents,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"slot": slot})
}
