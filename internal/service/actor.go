package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_core/internal/model"
)

// resolveActor определяет сторону бронирования по аутентифицированному пользователю
func resolveActor(ctx context.Context, students StudentStore, callerID int64, slot *model.Slot, booking *model.Booking) (model.Actor, error) {
	if slot.TeacherID == callerID {
		return model.TeacherActor(callerID), nil
	}

	student, err := students.GetByID(ctx, booking.StudentID)
	if err != nil {
		return model.Actor{}, fmt.Errorf("get student: %w", err)
	}
	if student != nil && student.ParentID == callerID {
		return model.ParentActor(callerID), nil
	}

	return model.Actor{}, forbidden("caller is not a participant of this booking")
}
