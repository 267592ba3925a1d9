package model

import (
	"fmt"
	"time"
)

type Initiator string

const (
	InitiatorTeacher Initiator = "TEACHER"
	InitiatorStudent Initiator = "STUDENT"
)

type ActorKind string

const (
	ActorTeacher ActorKind = "teacher"
	ActorParent  ActorKind = "parent"
)

// Actor участник, от имени которого выполняется действие с бронированием.
// Определяется только по аутентифицированному пользователю.
type Actor struct {
	Kind ActorKind
	ID   int64
}

func TeacherActor(id int64) Actor { return Actor{Kind: ActorTeacher, ID: id} }
func ParentActor(id int64) Actor  { return Actor{Kind: ActorParent, ID: id} }

// Initiator сторона отмены, соответствующая актору
func (a Actor) Initiator() Initiator {
	if a.Kind == ActorTeacher {
		return InitiatorTeacher
	}
	return InitiatorStudent
}

// Identity идентификатор участника в видеокомнате
func (a Actor) Identity() string {
	return fmt.Sprintf("%s-%d", a.Kind, a.ID)
}

const (
	CancelReasonTeacherNoShow = "teacher_no_show"
)

// CancellationEvent запись в журнале отмен (только добавление)
type CancellationEvent struct {
	ID               int64     `json:"id"`
	TeacherID        int64     `json:"teacher_id"`
	BookingID        int64     `json:"booking_id"`
	Initiator        Initiator `json:"initiator"`
	HoursBeforeClass float64   `json:"hours_before_class"`
	RefundPercent    int       `json:"refund_percent"`
	StrikeIssued     bool      `json:"strike_issued"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// RefundInfo итог отмены для уведомлений и ответа клиенту
type RefundInfo struct {
	BookingID     int64 `json:"booking_id"`
	RefundPercent int   `json:"refund_percent"`
	RefundCents   int64 `json:"refund_cents"`
	AmountCents   int64 `json:"amount_cents"`
	StrikeIssued  bool  `json:"strike_issued"`
}
