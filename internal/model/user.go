package model

import "time"

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID              int64     `json:"id"`
	Role            Role      `json:"role"`
	DisplayName     string    `json:"display_name"`
	TelegramChatID  *int64    `json:"telegram_chat_id,omitempty"`  // nil - уведомления не отправляются
	PayoutAccountID *string   `json:"payout_account_id,omitempty"` // счёт учителя для выплат
	CreatedAt       time.Time `json:"created_at"`
}

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// Student ученик, которым управляет родитель
type Student struct {
	ID        int64     `json:"id"`
	ParentID  int64     `json:"parent_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
