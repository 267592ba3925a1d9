package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// cancellationLockNamespace префикс ключа pg_advisory_xact_lock для отмен учителя
const cancellationLockNamespace = "teacher-cancellations:"

// CancellationRepository журнал отмен: записи только добавляются
type CancellationRepository struct {
	*base.Repository
}

func NewCancellationRepository(pool *pgxpool.Pool) *CancellationRepository {
	return &CancellationRepository{Repository: base.NewRepository(pool)}
}

// LockTeacher сериализует отмены одного учителя до конца транзакции
func (r *CancellationRepository) LockTeacher(ctx context.Context, teacherID int64) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1::text || $2::text, 0))`
	_, err := r.DB(ctx).Exec(ctx, query, cancellationLockNamespace, teacherID)
	if err != nil {
		return fmt.Errorf("lock teacher cancellations: %w", err)
	}
	return nil
}

// CountTeacherInitiatedSince считает отмены по инициативе учителя начиная с since
func (r *CancellationRepository) CountTeacherInitiatedSince(ctx context.Context, teacherID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM cancellation_events
		WHERE teacher_id = $1
		  AND initiator = 'TEACHER'
		  AND occurred_at >= $2
	`

	var count int
	if err := r.QueryRow(ctx, query, teacherID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count teacher cancellations: %w", err)
	}

	return count, nil
}

// Append добавляет событие отмены
func (r *CancellationRepository) Append(ctx context.Context, event *model.CancellationEvent) error {
	query := `
		INSERT INTO cancellation_events (teacher_id, booking_id, initiator, hours_before_class, refund_percent, strike_issued, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.QueryRow(
		ctx, query,
		event.TeacherID,
		event.BookingID,
		event.Initiator,
		event.HoursBeforeClass,
		event.RefundPercent,
		event.StrikeIssued,
		event.OccurredAt,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("append cancellation event: %w", err)
	}

	return nil
}
