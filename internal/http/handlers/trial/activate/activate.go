// Package activate обрабатывает одноразовую активацию пробного периода.
package activate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-engine/internal/clock"
	"github.com/magabrotheeeer/access-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-engine/internal/http/response"
	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/services/trial"
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// TrialInfo сведения об активированной пробе.
type TrialInfo struct {
	Tier     tier.Tier `json:"tier"`
	Duration int       `json:"duration"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// ActivateResponse представляет ответ успешной активации.
type ActivateResponse struct {
	Trial TrialInfo `json:"trial"`
}

// Service определяет интерфейс для активации пробного периода.
type Service interface {
	Activate(ctx context.Context, userUID string, now time.Time) (trial.ActivationResult, error)
}

// Handler обрабатывает запросы на активацию пробного периода.
type Handler struct {
	log     *slog.Logger
	service Service
	clk     clock.Clock
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		service: service,
		clk:     clk,
	}
}

// ServeHTTP godoc
// @Summary Активировать пробный период
// @Description Одноразово включает трёхдневную пробу уровня basic
// @Tags Trial
// @Produce json
// @Success 200 {object} response.Response "Сведения об активированной пробе"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Проба уже использована, активна подписка или уровень не free"
// @Router /trial/activate [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.activate"
	log := h.log.With(slog.String("op", op))

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	now := h.clk.Now()
	result, err := h.service.Activate(r.Context(), userUID, now)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Error("user not found", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to activate trial", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if !result.Activated {
		log.Info("trial activation rejected", slog.String("reason", result.Reason))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.ErrorWithCode("trial is not available", result.Reason))
		return
	}

	log.Info("trial activated", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(ActivateResponse{
		Trial: TrialInfo{
			Tier:     result.Tier,
			Duration: trial.DurationDays,
			StartsAt: result.StartsAt,
			EndsAt:   result.EndsAt,
		},
	}))
}
