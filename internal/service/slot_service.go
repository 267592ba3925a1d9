package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository"
	"go.uber.org/zap"
)

// SlotService владеет слотами учителей и их занятостью
type SlotService struct {
	slots   SlotStore
	users   UserStore
	strikes *StrikeService
	logger  *zap.Logger
	clock   func() time.Time
}

func NewSlotService(slots SlotStore, users UserStore, strikes *StrikeService, logger *zap.Logger) *SlotService {
	return &SlotService{
		slots:   slots,
		users:   users,
		strikes: strikes,
		logger:  logger,
		clock:   time.Now,
	}
}

// CreateSlotInput параметры нового слота
type CreateSlotInput struct {
	Start      time.Time
	End        time.Time
	PriceCents int64
}

// CreateSlot создаёт временной слот учителя
func (s *SlotService) CreateSlot(ctx context.Context, teacherID int64, input CreateSlotInput) (*model.Slot, error) {
	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, notFound("teacher", teacherID)
	}
	if !teacher.IsTeacher() {
		return nil, forbidden("only teachers can create slots")
	}

	// Валидация времени
	if !input.Start.Before(input.End) {
		return nil, validationf("end time must be after start time")
	}
	duration := input.End.Sub(input.Start)
	if duration < model.MinSlotDuration || duration > model.MaxSlotDuration {
		return nil, validationf("slot duration must be between %d and %d minutes",
			int(model.MinSlotDuration.Minutes()), int(model.MaxSlotDuration.Minutes()))
	}
	if input.Start.Before(s.clock().Add(-model.SlotStartGrace)) {
		return nil, validationf("cannot create slot in the past")
	}
	if input.PriceCents <= 0 {
		return nil, validationf("price must be positive")
	}

	suspended, err := s.strikes.IsSuspended(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if suspended {
		return nil, forbidden("teacher is suspended")
	}

	overlap, err := s.slots.HasOverlap(ctx, teacherID, input.Start, input.End)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlap {
		return nil, &OverlapError{TeacherID: teacherID}
	}

	slot := &model.Slot{
		TeacherID:  teacherID,
		StartTime:  input.Start.UTC(),
		EndTime:    input.End.UTC(),
		PriceCents: input.PriceCents,
	}

	// Ограничение в БД ловит гонку между проверкой и вставкой
	if err := s.slots.Create(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrSlotOverlap) {
			return nil, &OverlapError{TeacherID: teacherID}
		}
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.Info("Slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("teacher_id", teacherID),
		zap.Time("start_time", slot.StartTime),
		zap.Int64("price_cents", slot.PriceCents),
	)

	return slot, nil
}

// Get получает слот по ID
func (s *SlotService) Get(ctx context.Context, slotID int64) (*model.Slot, error) {
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, notFound("slot", slotID)
	}
	return slot, nil
}

// Reserve атомарно занимает слот
func (s *SlotService) Reserve(ctx context.Context, slotID int64) error {
	ok, err := s.slots.Reserve(ctx, slotID)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if !ok {
		if _, err := s.Get(ctx, slotID); err != nil {
			return err
		}
		return conflictf("slot unavailable")
	}
	return nil
}

// Release освобождает слот, повторный вызов безопасен
func (s *SlotService) Release(ctx context.Context, slotID int64) error {
	if err := s.slots.Release(ctx, slotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}
