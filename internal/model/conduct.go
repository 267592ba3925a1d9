package model

import "time"

// SuspensionThreshold количество страйков, после которого учитель блокируется
const SuspensionThreshold = 3

type TeacherConductState struct {
	TeacherID   int64     `json:"teacher_id"`
	StrikeCount int       `json:"strike_count"`
	IsSuspended bool      `json:"is_suspended"`
	UpdatedAt   time.Time `json:"updated_at"`
}
