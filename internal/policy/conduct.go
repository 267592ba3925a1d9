package policy

import (
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
)

const (
	// FreeTeacherCancellations бесплатные отмены учителя за окно QuotaWindow
	FreeTeacherCancellations = 2
	QuotaWindow              = 30 * 24 * time.Hour

	LateCancellationHours = 2.0
)

type StrikeReason string

const (
	StrikeReasonNone          StrikeReason = ""
	StrikeReasonLate          StrikeReason = "late_cancellation"
	StrikeReasonQuotaExceeded StrikeReason = "quota_exceeded"
)

type StrikeDecision struct {
	Issue  bool
	Reason StrikeReason
}

// DecideStrike решает, получает ли учитель страйк за отмену.
// priorTeacherCancellations - число отмен учителя в текущем окне без учёта этой.
func DecideStrike(c CancellationContext, priorTeacherCancellations int) StrikeDecision {
	if c.Initiator != model.InitiatorTeacher {
		return StrikeDecision{}
	}
	if c.HoursBeforeClass < LateCancellationHours {
		return StrikeDecision{Issue: true, Reason: StrikeReasonLate}
	}
	if priorTeacherCancellations+1 > FreeTeacherCancellations {
		return StrikeDecision{Issue: true, Reason: StrikeReasonQuotaExceeded}
	}
	return StrikeDecision{}
}

// QuotaWindowStart начало окна подсчёта отмен
func QuotaWindowStart(now time.Time) time.Time {
	return now.Add(-QuotaWindow)
}
