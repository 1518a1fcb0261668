// Package read отдаёт элемент контента, урезанный до превью при
// недостаточном уровне доступа.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-engine/internal/clock"
	"github.com/magabrotheeeer/access-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-engine/internal/http/response"
	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/services/gate"
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// ContentRepository определяет интерфейс для чтения элементов контента.
type ContentRepository interface {
	GetContentItem(ctx context.Context, id int) (*models.ContentItem, error)
}

// AccessService вычисляет эффективный уровень пользователя.
type AccessService interface {
	EffectiveTierFor(ctx context.Context, userUID string, now time.Time) tier.Tier
}

// Handler обрабатывает запросы на чтение контента.
type Handler struct {
	log     *slog.Logger
	content ContentRepository
	access  AccessService
	clk     clock.Clock
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, content ContentRepository, access AccessService, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		content: content,
		access:  access,
		clk:     clk,
	}
}

// ServeHTTP godoc
// @Summary Прочитать элемент контента
// @Description Возвращает контент целиком либо детерминированное превью, если эффективного уровня недостаточно. Сведения о решении доступа прикладываются всегда.
// @Tags Content
// @Produce json
// @Param id path int true "Идентификатор элемента контента"
// @Success 200 {object} response.Response "Контент с информацией о доступе"
// @Failure 400 {object} response.ErrorResponse "Некорректный id"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Элемент не найден"
// @Router /content/{id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.content.read"
	log := h.log.With(slog.String("op", op))

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		log.Error("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode id from url"))
		return
	}

	item, err := h.content.GetContentItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			log.Info("content item not found", slog.Int("id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("content item not found"))
			return
		}
		log.Error("failed to read content item", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	effective := h.access.EffectiveTierFor(r.Context(), userUID, h.clk.Now())
	gated := gate.Gate(item, effective)

	log.Info("content item served",
		slog.Int("id", id),
		slog.Bool("full_access", gated.HasFullContentAccess))
	render.JSON(w, r, response.StatusOKWithData(gated))
}
