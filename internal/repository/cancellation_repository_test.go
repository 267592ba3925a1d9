package repository

import (
	"context"
	"os"
	"testing"

	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestLockTeacherSeparatesTeachers(t *testing.T) {
	pool := testPool(t)
	repo := NewCancellationRepository(pool)
	tx := base.NewTransactor(pool)
	ctx := context.Background()

	// lockFromOtherTx берёт блокировку в отдельной транзакции и не ждёт дольше 200ms
	lockFromOtherTx := func(teacherID int64) error {
		return tx.InTx(ctx, func(ctx context.Context) error {
			if _, err := repo.DB(ctx).Exec(ctx, `SET LOCAL lock_timeout = '200ms'`); err != nil {
				return err
			}
			return repo.LockTeacher(ctx, teacherID)
		})
	}

	err := tx.InTx(ctx, func(txCtx context.Context) error {
		if err := repo.LockTeacher(txCtx, 1); err != nil {
			return err
		}
		// 1<<32 + 1 в младших 32 битах совпадает с 1
		assert.NoError(t, lockFromOtherTx(1<<32+1))
		assert.Error(t, lockFromOtherTx(1))
		return nil
	})
	require.NoError(t, err)
}
