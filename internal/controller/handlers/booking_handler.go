package handlers

import (
	"context"
	"strings"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/service"
	"github.com/gofiber/fiber/v2"
)

type bookingService interface {
	CreateBooking(ctx context.Context, callerID, studentID, slotID int64) (*model.Booking, error)
	CancelBooking(ctx context.Context, input service.CancelInput) (*model.RefundInfo, error)
}

type admissionService interface {
	JoinSession(ctx context.Context, callerID, bookingID int64) (*service.JoinResult, error)
}

type BookingHandler struct {
	bookings  bookingService
	admission admissionService
}

func NewBookingHandler(bookings *service.BookingService, admission *service.AdmissionService) *BookingHandler {
	return &BookingHandler{bookings: bookings, admission: admission}
}

type createBookingRequest struct {
	StudentID int64 `json:"student_id"`
	SlotID    int64 `json:"slot_id"`
}

type cancelBookingRequest struct {
	Initiator               string  `json:"initiator"`
	Reason                  string  `json:"reason"`
	StudentVerificationCode *string `json:"student_verification_code"`
}

// CreateBooking POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createBookingRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.StudentID <= 0 || req.SlotID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "student_id and slot_id are required")
	}

	booking, err := h.bookings.CreateBooking(c.Context(), userID, req.StudentID, req.SlotID)
	if err != nil {
		return err
	}

	// Код согласия знает только родитель, который создал бронирование
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"booking":      booking,
		"consent_code": booking.ConsentCode,
	})
}

// CancelBooking POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	bookingID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req cancelBookingRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	info, err := h.bookings.CancelBooking(c.Context(), service.CancelInput{
		CallerID:                userID,
		BookingID:               bookingID,
		ClaimedInitiator:        model.Initiator(strings.ToUpper(strings.TrimSpace(req.Initiator))),
		Reason:                  req.Reason,
		StudentVerificationCode: req.StudentVerificationCode,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"refund": info})
}

// JoinSession POST /api/v1/bookings/:id/join
func (h *BookingHandler) JoinSession(c *fiber.Ctx) error {
	userID, _, err := currentUser(c)
	if err != nil {
		return err
	}
	bookingID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.admission.JoinSession(c.Context(), userID, bookingID)
	if err != nil {
		return err
	}

	return c.JSON(result)
}
