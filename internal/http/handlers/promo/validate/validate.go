// Package validate обрабатывает проверку промокода перед покупкой.
package validate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/access-engine/internal/clock"
	"github.com/magabrotheeeer/access-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-engine/internal/http/response"
	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/services/promo"
)

// PromoCodeView промокод в ответе, без служебных полей.
type PromoCodeView struct {
	ID            int     `json:"id"`
	Code          string  `json:"code"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
}

// ValidateResponse представляет результат проверки промокода.
type ValidateResponse struct {
	Valid     bool           `json:"valid"`
	Reason    string         `json:"reason,omitempty"`
	PromoCode *PromoCodeView `json:"promo_code,omitempty"`
}

// Service определяет интерфейс для проверки промокодов.
type Service interface {
	Validate(ctx context.Context, code, userUID, planID string, now time.Time) (promo.ValidationResult, error)
}

// Handler обрабатывает запросы на проверку промокодов.
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
// @Summary Проверить промокод
// @Description Проверяет применимость промокода к плану для текущего пользователя
// @Tags Promo
// @Produce json
// @Param code path string true "Промокод"
// @Param tier query string false "Идентификатор плана"
// @Success 200 {object} response.Response "Результат проверки"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /promo-codes/validate/{code} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.promo.validate"
	log := h.log.With(slog.String("op", op))

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	code := chi.URLParam(r, "code")
	planID := r.URL.Query().Get("tier")

	result, err := h.service.Validate(r.Context(), code, userUID, planID, h.clk.Now())
	if err != nil {
		log.Error("failed to validate promo code", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	resp := ValidateResponse{Valid: result.Valid, Reason: result.Reason}
	if result.Valid {
		resp.PromoCode = &PromoCodeView{
			ID:            result.Promo.ID,
			Code:          result.Promo.Code,
			DiscountType:  result.Promo.DiscountType,
			DiscountValue: result.Promo.DiscountValue,
		}
	}
	log.Info("promo code validated",
		slog.String("code", code), slog.Bool("valid", result.Valid))
	render.JSON(w, r, response.StatusOKWithData(resp))
}
