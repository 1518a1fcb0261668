// Package status отдаёт текущее состояние пробного периода пользователя.
package status

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
)

// Service определяет интерфейс для чтения состояния пробного периода.
type Service interface {
	GetStatus(ctx context.Context, userUID string, now time.Time) (trial.Status, error)
}

// Handler обрабатывает запросы состояния пробного периода.
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
// @Summary Состояние пробного периода
// @Description Возвращает доступность, активность и факт использования пробы; ничего не мутирует
// @Tags Trial
// @Produce json
// @Success 200 {object} response.Response "Состояние пробного периода"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /trial/status [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.trial.status"
	log := h.log.With(slog.String("op", op))

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	result, err := h.service.GetStatus(r.Context(), userUID, h.clk.Now())
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Error("user not found", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to read trial status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(result))
}
