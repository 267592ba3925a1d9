package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSlotOverlap слот пересекается с другим слотом того же учителя
var ErrSlotOverlap = errors.New("slot overlaps an existing slot")

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

const slotColumns = `id, teacher_id, start_time, end_time, price_cents, is_booked, created_at`

// Create создаёт новый слот
func (r *SlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	query := `
		INSERT INTO slots (teacher_id, start_time, end_time, price_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_booked, created_at
	`

	err := r.QueryRow(
		ctx, query,
		slot.TeacherID,
		slot.StartTime,
		slot.EndTime,
		slot.PriceCents,
	).Scan(&slot.ID, &slot.IsBooked, &slot.CreatedAt)

	if err != nil {
		if base.HasCode(err, base.CodeExclusionViolation) {
			return ErrSlotOverlap
		}
		return fmt.Errorf("create slot: %w", err)
	}

	return nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`

	var slot model.Slot
	err := r.QueryRow(ctx, query, id).Scan(
		&slot.ID,
		&slot.TeacherID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.PriceCents,
		&slot.IsBooked,
		&slot.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return &slot, nil
}

// HasOverlap проверяет, есть ли у учителя слот, пересекающийся с [start, end)
func (r *SlotRepository) HasOverlap(ctx context.Context, teacherID int64, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM slots
			WHERE teacher_id = $1
			  AND start_time < $3
			  AND end_time > $2
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, teacherID, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot overlap: %w", err)
	}

	return exists, nil
}

// Reserve занимает слот одним условным UPDATE.
// Возвращает false, если слот уже занят или не существует.
func (r *SlotRepository) Reserve(ctx context.Context, slotID int64) (bool, error) {
	query := `
		UPDATE slots
		SET is_booked = TRUE
		WHERE id = $1 AND is_booked = FALSE
	`

	affected, err := r.ExecAffected(ctx, query, slotID)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}

	return affected == 1, nil
}

// Release освобождает слот; повторный вызов ничего не меняет
func (r *SlotRepository) Release(ctx context.Context, slotID int64) error {
	query := `
		UPDATE slots
		SET is_booked = FALSE
		WHERE id = $1 AND is_booked = TRUE
	`

	if _, err := r.ExecAffected(ctx, query, slotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}

	return nil
}
