package video

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/livekit/protocol/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKey    = "APIkey123"
	testSecret = "secret-secret-secret-secret-secret"
)

func newTestLiveKit(t *testing.T) *LiveKit {
	t.Helper()
	l, err := NewLiveKit(Config{
		URL:       "https://livekit.example.com",
		APIKey:    testKey,
		APISecret: testSecret,
	}, zap.NewNop())
	require.NoError(t, err)
	return l
}

func signWebhook(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	sum := sha256.Sum256(payload)
	at := auth.NewAccessToken(testKey, secret)
	at.SetSha256(base64.StdEncoding.EncodeToString(sum[:])).SetValidFor(time.Minute)
	token, err := at.ToJWT()
	require.NoError(t, err)
	return token
}

func TestMintAccessTokenScopesRoomAndIdentity(t *testing.T) {
	l := newTestLiveKit(t)

	token, err := l.MintAccessToken("parent-7", "42", model.SessionGrants{CanPublish: true, CanSubscribe: true}, 30*time.Minute)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)

	assert.Equal(t, "parent-7", claims["sub"])
	assert.Equal(t, testKey, claims["iss"])

	video, ok := claims["video"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", video["room"])
	assert.Equal(t, true, video["roomJoin"])
	assert.Equal(t, true, video["canPublish"])

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp.Time, 5*time.Second)
}

func TestParseWebhookEgressEnded(t *testing.T) {
	l := newTestLiveKit(t)
	payload := []byte(`{
		"event": "egress_ended",
		"id": "EV_1",
		"egressInfo": {
			"egressId": "EG_1",
			"roomName": "42",
			"status": "EGRESS_COMPLETE",
			"fileResults": [{"location": "s3://recordings/42.mp4"}]
		}
	}`)

	event, err := l.ParseWebhook(payload, signWebhook(t, payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, model.RecordingEventEnded, event.Kind)
	assert.Equal(t, "42", event.RoomName)
	assert.Equal(t, "EG_1", event.SessionRef)
	assert.Equal(t, "s3://recordings/42.mp4", event.RecordingLocation)
}

func TestParseWebhookUnfinishedEgress(t *testing.T) {
	l := newTestLiveKit(t)

	for _, status := range []string{"EGRESS_FAILED", "EGRESS_ABORTED", "EGRESS_LIMIT_REACHED"} {
		t.Run(status, func(t *testing.T) {
			payload := []byte(`{
				"event": "egress_ended",
				"id": "EV_3",
				"egressInfo": {
					"egressId": "EG_1",
					"roomName": "42",
					"status": "` + status + `",
					"error": "composite failed to start"
				}
			}`)

			event, err := l.ParseWebhook(payload, signWebhook(t, payload, testSecret))
			require.NoError(t, err)
			assert.Equal(t, model.RecordingEventOther, event.Kind)
			assert.Equal(t, "42", event.RoomName)
			assert.Empty(t, event.RecordingLocation)
		})
	}
}

func TestParseWebhookOtherEvent(t *testing.T) {
	l := newTestLiveKit(t)
	payload := []byte(`{"event": "room_started", "id": "EV_2", "room": {"name": "42"}}`)

	event, err := l.ParseWebhook(payload, signWebhook(t, payload, testSecret))
	require.NoError(t, err)
	assert.Equal(t, model.RecordingEventOther, event.Kind)
	assert.Equal(t, "42", event.RoomName)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	l := newTestLiveKit(t)
	payload := []byte(`{"event": "egress_ended", "egressInfo": {"roomName": "42"}}`)

	_, err := l.ParseWebhook(payload, "")
	assert.Error(t, err)

	_, err = l.ParseWebhook(payload, signWebhook(t, payload, "another-secret-another-secret-xx"))
	assert.Error(t, err)

	tampered := []byte(`{"event": "egress_ended", "egressInfo": {"roomName": "43"}}`)
	_, err = l.ParseWebhook(tampered, signWebhook(t, payload, testSecret))
	assert.Error(t, err)
}

func TestNewLiveKitValidatesConfig(t *testing.T) {
	_, err := NewLiveKit(Config{URL: "https://livekit.example.com", APIKey: testKey}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewLiveKit(Config{URL: "not a url", APIKey: testKey, APISecret: testSecret}, zap.NewNop())
	assert.Error(t, err)
}
