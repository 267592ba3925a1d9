package handlers

import (
	"strconv"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/gofiber/fiber/v2"
)

// currentUser достаёт пользователя, положенного AuthRequired
func currentUser(c *fiber.Ctx) (int64, model.Role, error) {
	userID, ok := c.Locals(localUserID).(int64)
	if !ok || userID <= 0 {
		return 0, "", fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	role, _ := c.Locals(localRole).(model.Role)
	return userID, role, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}
