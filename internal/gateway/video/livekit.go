// Package video адаптер видеоплатформы LiveKit: токены доступа, запись комнаты, вебхуки.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"go.uber.org/zap"
)

type Config struct {
	URL       string
	APIKey    string
	APISecret string
	// RecordingPrefix каталог для файлов записи в хранилище egress
	RecordingPrefix string
}

// LiveKit реализует service.VideoPlatform
type LiveKit struct {
	cfg      Config
	egress   *lksdk.EgressClient
	provider auth.KeyProvider
	logger   *zap.Logger
}

func NewLiveKit(cfg Config, logger *zap.Logger) (*LiveKit, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("livekit api key and secret are required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid livekit url %q", cfg.URL)
	}

	return &LiveKit{
		cfg:      cfg,
		egress:   lksdk.NewEgressClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		provider: auth.NewSimpleKeyProvider(cfg.APIKey, cfg.APISecret),
		logger:   logger,
	}, nil
}

// MintAccessToken подписывает токен на вход в одну комнату
func (l *LiveKit) MintAccessToken(identity, roomName string, grants model.SessionGrants, ttl time.Duration) (string, error) {
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	grant.SetCanPublish(grants.CanPublish)
	grant.SetCanSubscribe(grants.CanSubscribe)

	at := auth.NewAccessToken(l.cfg.APIKey, l.cfg.APISecret)
	at.AddGrant(grant).
		SetIdentity(identity).
		SetValidFor(ttl)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// StartRecording запускает composite egress комнаты в mp4
func (l *LiveKit) StartRecording(ctx context.Context, roomName string) (string, error) {
	req := &livekit.RoomCompositeEgressRequest{
		RoomName: roomName,
		Layout:   "speaker",
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_MP4,
			Filepath: path.Join(l.cfg.RecordingPrefix, "{room_name}-{time}.mp4"),
		}},
	}

	info, err := l.egress.StartRoomCompositeEgress(ctx, req)
	if err != nil {
		return "", fmt.Errorf("start room egress: %w", err)
	}
	return info.GetEgressId(), nil
}

// ParseWebhook проверяет подпись заголовка Authorization и хэш тела, затем разбирает событие
func (l *LiveKit) ParseWebhook(payload []byte, authHeader string) (*model.RecordingEvent, error) {
	if authHeader == "" {
		return nil, fmt.Errorf("missing authorization header")
	}

	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/webhook+json")

	event, err := webhook.ReceiveWebhookEvent(req, l.provider)
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	l.logger.Debug("LiveKit webhook received",
		zap.String("event", event.GetEvent()),
		zap.String("event_id", event.GetId()),
	)

	return l.toRecordingEvent(event), nil
}

// toRecordingEvent завершённой считается только запись со статусом EGRESS_COMPLETE
func (l *LiveKit) toRecordingEvent(event *livekit.WebhookEvent) *model.RecordingEvent {
	if event.GetEvent() != webhook.EventEgressEnded || event.GetEgressInfo() == nil {
		return &model.RecordingEvent{Kind: model.RecordingEventOther, RoomName: event.GetRoom().GetName()}
	}

	info := event.GetEgressInfo()
	result := &model.RecordingEvent{
		Kind:       model.RecordingEventOther,
		RoomName:   info.GetRoomName(),
		SessionRef: info.GetEgressId(),
	}
	if info.GetStatus() != livekit.EgressStatus_EGRESS_COMPLETE {
		l.logger.Warn("Recording ended without completing",
			zap.String("room", info.GetRoomName()),
			zap.String("egress_id", info.GetEgressId()),
			zap.String("status", info.GetStatus().String()),
			zap.String("error", info.GetError()),
		)
		return result
	}

	result.Kind = model.RecordingEventEnded
	if files := info.GetFileResults(); len(files) > 0 {
		result.RecordingLocation = files[0].GetLocation()
	}
	return result
}
