package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"go.uber.org/zap"
)

// PayoutService подключает учителей к выплатам
type PayoutService struct {
	users    UserStore
	payments PaymentGateway
	logger   *zap.Logger
}

func NewPayoutService(users UserStore, payments PaymentGateway, logger *zap.Logger) *PayoutService {
	return &PayoutService{
		users:    users,
		payments: payments,
		logger:   logger,
	}
}

// OnboardingLink создаёт счёт выплат при первом обращении и возвращает ссылку на анкету
func (s *PayoutService) OnboardingLink(ctx context.Context, teacherID int64) (*model.PayoutLink, error) {
	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if teacher == nil {
		return nil, notFound("teacher", teacherID)
	}
	if !teacher.IsTeacher() {
		return nil, forbidden("only teachers can receive payouts")
	}

	var accountID string
	if teacher.PayoutAccountID != nil {
		accountID = *teacher.PayoutAccountID
	}

	link, err := s.payments.CreatePayoutOnboardingLink(ctx, teacherID, accountID)
	if err != nil {
		return nil, &ExternalServiceError{Service: servicePayments, Err: err}
	}

	if accountID == "" {
		if err := s.users.SetPayoutAccount(ctx, teacherID, link.AccountID); err != nil {
			return nil, fmt.Errorf("store payout account: %w", err)
		}
		s.logger.Info("Payout account created",
			zap.Int64("teacher_id", teacherID),
			zap.String("account_id", link.AccountID),
		)
	}

	return link, nil
}
