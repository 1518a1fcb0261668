package validate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/access-engine/internal/clock"
	"github.com/magabrotheeeer/access-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/services/promo"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type ServiceMock struct{ mock.Mock }

func (m *ServiceMock) Validate(ctx context.Context, code, userUID, planID string, now time.Time) (promo.ValidationResult, error) {
	args := m.Called(ctx, code, userUID, planID, now)
	return args.Get(0).(promo.ValidationResult), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, h http.Handler, code, planID string, authorized bool) *httptest.ResponseRecorder {
	t.Helper()

	url := "/api/v1/promo-codes/validate/" + code
	if planID != "" {
		url += "?tier=" + planID
	}
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", code)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if authorized {
		ctx = context.WithValue(ctx, middlewarectx.UserUID, "uid-1")
	}
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServeHTTP_Valid(t *testing.T) {
	service := new(ServiceMock)
	service.On("Validate", mock.Anything, "SPRING10", "uid-1", "basic-monthly", now).
		Return(promo.ValidationResult{
			Valid: true,
			Promo: &models.PromoCode{
				ID: 5, Code: "SPRING10",
				DiscountType: models.DiscountPercentage, DiscountValue: 10,
				MaxRedemptions: 100, UsageCount: 3,
			},
		}, nil)

	h := New(newTestLogger(), service, clock.NewFixed(now))
	rr := doRequest(t, h, "SPRING10", "basic-monthly", true)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidateResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Empty(t, resp.Data.Reason)
	assert.Equal(t, 5, resp.Data.PromoCode.ID)
	assert.Equal(t, "SPRING10", resp.Data.PromoCode.Code)
	assert.InDelta(t, 10, resp.Data.PromoCode.DiscountValue, 1e-9)
}

// Отказы валидации отдаются кодом 200 с причиной: клиент проверяет код
// до покупки и отказ здесь не ошибка запроса.
func TestServeHTTP_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		reason string
	}{
		{name: "код не найден", reason: promo.ReasonNotFound},
		{name: "код истёк", reason: promo.ReasonExpired},
		{name: "лимит исчерпан", reason: promo.ReasonExhausted},
		{name: "уже погашен пользователем", reason: promo.ReasonAlreadyRedeemed},
		{name: "код неприменим к уровню", reason: promo.ReasonTierNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(ServiceMock)
			service.On("Validate", mock.Anything, "DEAD", "uid-1", "", now).
				Return(promo.ValidationResult{Reason: tt.reason}, nil)

			h := New(newTestLogger(), service, clock.NewFixed(now))
			rr := doRequest(t, h, "DEAD", "", true)

			assert.Equal(t, http.StatusOK, rr.Code)

			var resp struct {
				Data ValidateResponse `json:"data"`
			}
			assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Data.Valid)
			assert.Equal(t, tt.reason, resp.Data.Reason)
			assert.Nil(t, resp.Data.PromoCode)
		})
	}
}

func TestServeHTTP_ServiceError(t *testing.T) {
	service := new(ServiceMock)
	service.On("Validate", mock.Anything, "SPRING10", "uid-1", "", now).
		Return(promo.ValidationResult{}, errors.New("db unreachable"))

	h := New(newTestLogger(), service, clock.NewFixed(now))
	rr := doRequest(t, h, "SPRING10", "", true)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestServeHTTP_Unauthorized(t *testing.T) {
	service := new(ServiceMock)
	h := New(newTestLogger(), service, clock.NewFixed(now))
	rr := doRequest(t, h, "SPRING10", "", false)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	service.AssertNotCalled(t, "Validate",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
