package model

import "time"

const (
	MinSlotDuration = 30 * time.Minute
	MaxSlotDuration = 240 * time.Minute

	// SlotStartGrace допустимое опоздание начала слота относительно текущего времени
	SlotStartGrace = time.Minute
)

type Slot struct {
	ID         int64     `json:"id"`
	TeacherID  int64     `json:"teacher_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	PriceCents int64     `json:"price_cents"`
	IsBooked   bool      `json:"is_booked"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
