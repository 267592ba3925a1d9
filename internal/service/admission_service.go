package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// AdmissionLead за сколько до начала открывается вход в комнату
	AdmissionLead = 10 * time.Minute
	MinTokenTTL   = time.Minute

	recordingClaimPrefix = "pending:"
)

// JoinResult токен доступа к видеокомнате
type JoinResult struct {
	Token     string    `json:"token"`
	RoomName  string    `json:"room_name"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdmissionService выдаёт доступ в видеокомнату и единожды запускает запись
type AdmissionService struct {
	bookings BookingStore
	slots    *SlotService
	students StudentStore
	video    VideoPlatform
	logger   *zap.Logger
	clock    func() time.Time
}

func NewAdmissionService(
	bookings BookingStore,
	slots *SlotService,
	students StudentStore,
	video VideoPlatform,
	logger *zap.Logger,
) *AdmissionService {
	return &AdmissionService{
		bookings: bookings,
		slots:    slots,
		students: students,
		video:    video,
		logger:   logger,
		clock:    time.Now,
	}
}

// JoinSession проверяет участника и окно допуска и выдаёт краткоживущий токен
func (s *AdmissionService) JoinSession(ctx context.Context, callerID, bookingID int64) (*JoinResult, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, notFound("booking", bookingID)
	}

	slot, err := s.slots.Get(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}

	actor, err := resolveActor(ctx, s.students, callerID, slot, booking)
	if err != nil {
		return nil, err
	}

	if booking.PaymentStatus == model.PaymentStatusRefunded || booking.PaymentStatus == model.PaymentStatusFailed {
		return nil, conflictf("booking is %s", booking.PaymentStatus)
	}

	now := s.clock()
	opensAt := slot.StartTime.Add(-AdmissionLead)
	if now.Before(opensAt) {
		return nil, &TooEarlyError{MinutesRemaining: int(math.Ceil(opensAt.Sub(now).Minutes()))}
	}
	if now.After(slot.EndTime) {
		return nil, ErrSessionEnded
	}

	ttl := slot.EndTime.Sub(now)
	if ttl < MinTokenTTL {
		ttl = MinTokenTTL
	}

	room := booking.RoomName()
	identity := actor.Identity()
	token, err := s.video.MintAccessToken(identity, room, model.SessionGrants{CanPublish: true, CanSubscribe: true}, ttl)
	if err != nil {
		return nil, &ExternalServiceError{Service: serviceVideo, Err: err}
	}

	if actor.Kind == model.ActorTeacher && booking.TeacherJoinedAt == nil {
		if err := s.bookings.MarkTeacherJoined(ctx, booking.ID, now.UTC()); err != nil {
			s.logger.Error("Failed to record teacher join",
				zap.Int64("booking_id", booking.ID),
				zap.Error(err),
			)
		}
	}

	s.ensureRecording(ctx, booking)

	s.logger.Info("Session access granted",
		zap.Int64("booking_id", booking.ID),
		zap.String("identity", identity),
		zap.Duration("ttl", ttl),
	)

	return &JoinResult{
		Token:     token,
		RoomName:  room,
		Identity:  identity,
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

// ensureRecording запускает запись не более одного раза на бронирование.
// Право запуска занимается условным UPDATE, ошибки записи не мешают входу.
func (s *AdmissionService) ensureRecording(ctx context.Context, booking *model.Booking) {
	if booking.RecordingSessionRef != nil {
		return
	}

	placeholder := recordingClaimPrefix + uuid.NewString()
	claimed, err := s.bookings.ClaimRecording(ctx, booking.ID, placeholder)
	if err != nil {
		s.logger.Error("Failed to claim recording", zap.Int64("booking_id", booking.ID), zap.Error(err))
		return
	}
	if !claimed {
		return
	}

	sessionRef, err := s.video.StartRecording(ctx, booking.RoomName())
	if err != nil {
		s.logger.Warn("Failed to start recording",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
		if err := s.bookings.ClearRecordingClaim(ctx, booking.ID, placeholder); err != nil {
			s.logger.Error("Failed to clear recording claim", zap.Int64("booking_id", booking.ID), zap.Error(err))
		}
		return
	}

	replaced, err := s.bookings.ReplaceRecordingRef(ctx, booking.ID, placeholder, sessionRef)
	if err != nil || !replaced {
		s.logger.Error("Failed to store recording reference",
			zap.Int64("booking_id", booking.ID),
			zap.String("session_ref", sessionRef),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Recording started",
		zap.Int64("booking_id", booking.ID),
		zap.String("session_ref", sessionRef),
	)
}
