package handlers

import (
	"context"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
)

type strikeService interface {
	Reset(ctx context.Context, teacherID int64) (*model.TeacherConductState, error)
	Get(ctx context.Context, teacherID int64) (*model.TeacherConductState, error)
}

type AdminHandler struct {
	strikes strikeService
}

func NewAdminHandler(strikes *service.StrikeService) *AdminHandler {
	return &AdminHandler{strikes: strikes}
}

// ResetStrikes POST /api/v1/admin/teachers/:id/strikes/reset
func (h *AdminHandler) ResetStrikes(c *fiber.Ctx) error {
	teacherID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	state, err := h.strikes.Reset(c.Context(), teacherID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conduct": state})
}

// Conduct GET /api/v1/admin/teachers/:id/conduct
func (h *AdminHandler) Conduct(c *fiber.Ctx) error {
	teacherID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	state, err := h.strikes.Get(c.Context(), teacherID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conduct": state})
}
