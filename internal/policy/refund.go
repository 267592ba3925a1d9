// Package policy содержит чистые функции политики отмен: размер возврата и решение о страйке.
package policy

import "github.com/Freeeeeet/tutoring_core/internal/model"

const (
	FullRefundNoticeHours    = 24.0
	PartialRefundNoticeHours = 2.0

	FullRefundPercent    = 100
	PartialRefundPercent = 50
	NoRefundPercent      = 0
)

// CancellationContext контекст отмены, вычисленный на сервере
type CancellationContext struct {
	Initiator        model.Initiator
	HoursBeforeClass float64
	IsNoShow         bool
}

// RefundPercent возвращает процент возврата ученику
func RefundPercent(c CancellationContext) int {
	switch {
	case c.IsNoShow:
		return FullRefundPercent
	case c.HoursBeforeClass >= FullRefundNoticeHours:
		return FullRefundPercent
	case c.HoursBeforeClass >= PartialRefundNoticeHours:
		return PartialRefundPercent
	default:
		return NoRefundPercent
	}
}

// RefundAmount сумма возврата в центах, округлённая вниз
func RefundAmount(amountCents int64, percent int) int64 {
	if percent <= 0 || amountCents <= 0 {
		return 0
	}
	if percent >= 100 {
		return amountCents
	}
	return amountCents * int64(percent) / 100
}
