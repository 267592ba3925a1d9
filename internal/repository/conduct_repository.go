package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConductRepository хранит страйки учителей. Все изменения - одна атомарная команда.
type ConductRepository struct {
	*base.Repository
}

func NewConductRepository(pool *pgxpool.Pool) *ConductRepository {
	return &ConductRepository{Repository: base.NewRepository(pool)}
}

// IncrementStrike добавляет страйк; строка блокируется Postgres на время UPSERT,
// поэтому параллельные отмены не теряют инкременты.
func (r *ConductRepository) IncrementStrike(ctx context.Context, teacherID int64, threshold int) (*model.TeacherConductState, error) {
	query := `
		INSERT INTO teacher_conduct (teacher_id, strike_count, is_suspended, updated_at)
		VALUES ($1, 1, 1 >= $2, NOW())
		ON CONFLICT (teacher_id) DO UPDATE
		SET strike_count = LEAST(teacher_conduct.strike_count + 1, $2),
		    is_suspended = teacher_conduct.is_suspended OR teacher_conduct.strike_count + 1 >= $2,
		    updated_at = NOW()
		RETURNING teacher_id, strike_count, is_suspended, updated_at
	`

	var state model.TeacherConductState
	err := r.QueryRow(ctx, query, teacherID, threshold).Scan(
		&state.TeacherID,
		&state.StrikeCount,
		&state.IsSuspended,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("increment strike: %w", err)
	}

	return &state, nil
}

// Reset обнуляет страйки и снимает блокировку
func (r *ConductRepository) Reset(ctx context.Context, teacherID int64) (*model.TeacherConductState, error) {
	query := `
		INSERT INTO teacher_conduct (teacher_id, strike_count, is_suspended, updated_at)
		VALUES ($1, 0, FALSE, NOW())
		ON CONFLICT (teacher_id) DO UPDATE
		SET strike_count = 0, is_suspended = FALSE, updated_at = NOW()
		RETURNING teacher_id, strike_count, is_suspended, updated_at
	`

	var state model.TeacherConductState
	err := r.QueryRow(ctx, query, teacherID).Scan(
		&state.TeacherID,
		&state.StrikeCount,
		&state.IsSuspended,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("reset strikes: %w", err)
	}

	return &state, nil
}

// Get возвращает состояние учителя; без записей - нулевое состояние
func (r *ConductRepository) Get(ctx context.Context, teacherID int64) (*model.TeacherConductState, error) {
	query := `
		SELECT teacher_id, strike_count, is_suspended, updated_at
		FROM teacher_conduct
		WHERE teacher_id = $1
	`

	var state model.TeacherConductState
	err := r.QueryRow(ctx, query, teacherID).Scan(
		&state.TeacherID,
		&state.StrikeCount,
		&state.IsSuspended,
		&state.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return &model.TeacherConductState{TeacherID: teacherID}, nil
		}
		return nil, fmt.Errorf("get conduct state: %w", err)
	}

	return &state, nil
}
