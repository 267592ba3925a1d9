package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/Freeeeeet/tutoring_core/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, role, display_name, telegram_chat_id, payout_account_id, created_at
		FROM users
		WHERE id = $1
	`

	var user model.User
	err := r.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Role,
		&user.DisplayName,
		&user.TelegramChatID,
		&user.PayoutAccountID,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

// SetPayoutAccount сохраняет счёт учителя для выплат
func (r *UserRepository) SetPayoutAccount(ctx context.Context, id int64, accountID string) error {
	query := `
		UPDATE users
		SET payout_account_id = $1
		WHERE id = $2 AND role = 'teacher'
	`

	affected, err := r.ExecAffected(ctx, query, accountID, id)
	if err != nil {
		return fmt.Errorf("set payout account: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("teacher %d not found", id)
	}

	return nil
}

// SetTelegramChat привязывает Telegram чат к пользователю
func (r *UserRepository) SetTelegramChat(ctx context.Context, id int64, chatID int64) error {
	query := `
		UPDATE users
		SET telegram_chat_id = $1
		WHERE id = $2
	`

	affected, err := r.ExecAffected(ctx, query, chatID, id)
	if err != nil {
		return fmt.Errorf("set telegram chat: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("user %d not found", id)
	}

	return nil
}

// TeacherChatID возвращает Telegram чат учителя слота (nil если не привязан)
func (r *UserRepository) TeacherChatID(ctx context.Context, teacherID int64) (*int64, error) {
	user, err := r.GetByID(ctx, teacherID)
	if err != nil || user == nil {
		return nil, err
	}
	return user.TelegramChatID, nil
}

// ParentChatIDByStudent возвращает Telegram чат родителя ученика
func (r *UserRepository) ParentChatIDByStudent(ctx context.Context, studentID int64) (*int64, error) {
	query := `
		SELECT u.telegram_chat_id
		FROM students s
		JOIN users u ON u.id = s.parent_id
		WHERE s.id = $1
	`

	var chatID *int64
	err := r.QueryRow(ctx, query, studentID).Scan(&chatID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get parent chat by student: %w", err)
	}

	return chatID, nil
}
