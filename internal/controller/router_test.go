package controller

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_core/internal/controller/handlers"
	"github.com/Freeeeeet/tutoring_core/internal/model"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const routerSecret = "router-secret"

func bearer(t *testing.T, userID string, role model.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, handlers.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(routerSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterGuards(t *testing.T) {
	app := NewRouter(Services{}, routerSecret, zap.NewNop())

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"health is public", fiber.MethodGet, "/health", "", fiber.StatusOK},
		{"api needs token", fiber.MethodPost, "/api/v1/slots", "", fiber.StatusUnauthorized},
		{"parent cannot create slot", fiber.MethodPost, "/api/v1/slots", bearer(t, "2", model.RoleParent), fiber.StatusForbidden},
		{"teacher cannot book", fiber.MethodPost, "/api/v1/bookings", bearer(t, "1", model.RoleTeacher), fiber.StatusForbidden},
		{"parent cannot onboard payouts", fiber.MethodPost, "/api/v1/teachers/me/payout-onboarding", bearer(t, "2", model.RoleParent), fiber.StatusForbidden},
		{"teacher is not admin", fiber.MethodGet, "/api/v1/admin/teachers/1/conduct", bearer(t, "1", model.RoleTeacher), fiber.StatusForbidden},
		{"unknown route", fiber.MethodGet, "/api/v1/nope", bearer(t, "1", model.RoleTeacher), fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
