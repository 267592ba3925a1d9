package controller

import (
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/controller/handlers"
	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// Services зависимости HTTP слоя
type Services struct {
	Slots      *service.SlotService
	Bookings   *service.BookingService
	Admission  *service.AdmissionService
	Settlement *service.SettlementService
	Strikes    *service.StrikeService
	Payouts    *service.PayoutService
	Users      *service.UserService
}

// NewRouter собирает fiber приложение со всеми маршрутами
func NewRouter(svc Services, jwtSecret string, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "tutoring-core",
		ErrorHandler:          handlers.ErrorHandler(logger),
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	app.Use(handlers.AccessLog(logger))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	slotHandler := handlers.NewSlotHandler(svc.Slots)
	bookingHandler := handlers.NewBookingHandler(svc.Bookings, svc.Admission)
	webhookHandler := handlers.NewWebhookHandler(svc.Settlement)
	adminHandler := handlers.NewAdminHandler(svc.Strikes)
	accountHandler := handlers.NewAccountHandler(svc.Payouts, svc.Users)

	// Вебхуки подписаны отправителем, JWT не нужен
	webhooks := app.Group("/webhooks")
	webhooks.Post("/video", webhookHandler.Video)
	webhooks.Post("/payment", webhookHandler.Payment)

	api := app.Group("/api/v1", handlers.AuthRequired(jwtSecret))

	api.Post("/slots", handlers.RequireRole(model.RoleTeacher), slotHandler.CreateSlot)

	bookings := api.Group("/bookings")
	bookings.Post("", handlers.RequireRole(model.RoleParent), bookingHandler.CreateBooking)
	bookings.Post("/:id/cancel", bookingHandler.CancelBooking)
	bookings.Post("/:id/join", bookingHandler.JoinSession)

	api.Post("/teachers/me/payout-onboarding", handlers.RequireRole(model.RoleTeacher), accountHandler.PayoutOnboarding)
	api.Post("/me/telegram-link", accountHandler.TelegramLink)

	admin := api.Group("/admin", handlers.RequireRole(model.RoleAdmin))
	admin.Post("/teachers/:id/strikes/reset", adminHandler.ResetStrikes)
	admin.Get("/teachers/:id/conduct", adminHandler.Conduct)

	return app
}
