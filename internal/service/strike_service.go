package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"go.uber.org/zap"
)

// StrikeService единственный владелец состояния TeacherConductState
type StrikeService struct {
	conduct  ConductStore
	notifier Notifier
	logger   *zap.Logger
}

func NewStrikeService(conduct ConductStore, notifier Notifier, logger *zap.Logger) *StrikeService {
	return &StrikeService{
		conduct:  conduct,
		notifier: notifier,
		logger:   logger,
	}
}

// IssueStrike начисляет учителю один страйк, на третьем учитель блокируется
func (s *StrikeService) IssueStrike(ctx context.Context, teacherID int64) (*model.TeacherConductState, error) {
	state, err := s.record(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	s.warn(teacherID, *state)
	return state, nil
}

// record меняет только хранилище, поэтому может выполняться внутри чужой транзакции
func (s *StrikeService) record(ctx context.Context, teacherID int64) (*model.TeacherConductState, error) {
	state, err := s.conduct.IncrementStrike(ctx, teacherID, model.SuspensionThreshold)
	if err != nil {
		return nil, fmt.Errorf("issue strike: %w", err)
	}

	s.logger.Info("Strike issued",
		zap.Int64("teacher_id", teacherID),
		zap.Int("strike_count", state.StrikeCount),
		zap.Bool("is_suspended", state.IsSuspended),
	)

	return state, nil
}

func (s *StrikeService) warn(teacherID int64, state model.TeacherConductState) {
	s.notifier.StrikeWarning(teacherID, state)
}

// Reset административный сброс страйков и блокировки
func (s *StrikeService) Reset(ctx context.Context, teacherID int64) (*model.TeacherConductState, error) {
	state, err := s.conduct.Reset(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("reset strikes: %w", err)
	}

	s.logger.Info("Strikes reset", zap.Int64("teacher_id", teacherID))

	return state, nil
}

// Get возвращает текущее состояние учителя
func (s *StrikeService) Get(ctx context.Context, teacherID int64) (*model.TeacherConductState, error) {
	state, err := s.conduct.Get(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("get conduct state: %w", err)
	}
	return state, nil
}

// IsSuspended проверяет блокировку учителя
func (s *StrikeService) IsSuspended(ctx context.Context, teacherID int64) (bool, error) {
	state, err := s.Get(ctx, teacherID)
	if err != nil {
		return false, err
	}
	return state.IsSuspended, nil
}
