// Package create обрабатывает создание заказа на покупку тарифного плана.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/access-engine/internal/clock"
	"github.com/magabrotheeeer/access-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-engine/internal/http/response"
	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/paymentgateway"
	"github.com/magabrotheeeer/access-engine/internal/services/ledger"
	"github.com/magabrotheeeer/access-engine/internal/services/promo"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// CreateOrderRequest представляет запрос на создание заказа.
type CreateOrderRequest struct {
	TierID    string `json:"tier_id" validate:"required"` // Идентификатор плана из каталога
	PromoCode string `json:"promo_code,omitempty"`        // Необязательный промокод
}

// CreateOrderResponse представляет данные созданного заказа.
type CreateOrderResponse struct {
	OrderID       string  `json:"order_id"`
	ApprovalURL   string  `json:"approval_url"`
	OriginalPrice float64 `json:"original_price"`
	Discount      float64 `json:"discount"`
	FinalPrice    float64 `json:"final_price"`
	IsUpgrade     bool    `json:"is_upgrade"`
}

// AccessService вычисляет эффективный уровень пользователя.
type AccessService interface {
	EffectiveTierFor(ctx context.Context, userUID string, now time.Time) tier.Tier
}

// PromoService проверяет применимость промокода.
type PromoService interface {
	Validate(ctx context.Context, code, userUID, planID string, now time.Time) (promo.ValidationResult, error)
}

// GatewayClient определяет интерфейс для работы с платёжным шлюзом.
type GatewayClient interface {
	CreateOrder(ctx context.Context, amount float64, currency, description string) (*paymentgateway.Order, error)
}

// Handler обрабатывает запросы на создание заказов.
type Handler struct {
	log      *slog.Logger
	access   AccessService
	promos   PromoService
	gateway  GatewayClient
	clk      clock.Clock
	currency string
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, access AccessService, promos PromoService,
	gateway GatewayClient, clk clock.Clock, currency string) *Handler {
	return &Handler{
		log:      log,
		access:   access,
		promos:   promos,
		gateway:  gateway,
		clk:      clk,
		currency: currency,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать заказ
// @Description Рассчитывает цену плана с учётом апгрейда и промокода и создаёт заказ у платёжного шлюза
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body CreateOrderRequest true "Данные для создания заказа"
// @Success 200 {object} response.Response "Созданный заказ с разбивкой цены"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный план"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Промокод неприменим"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Router /orders [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.order.create"
	log := h.log.With(slog.String("op", op))

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	plan, ok := tier.FindPlan(req.TierID)
	if !ok {
		log.Error("unknown plan", slog.String("tier_id", req.TierID))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("unknown plan"))
		return
	}

	now := h.clk.Now()

	var promoCode *models.PromoCode
	if req.PromoCode != "" {
		result, err := h.promos.Validate(r.Context(), req.PromoCode, userUID, plan.ID, now)
		if err != nil {
			log.Error("failed to validate promo code", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
		if !result.Valid {
			log.Info("promo code rejected", slog.String("reason", result.Reason))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.ErrorWithCode("promo code is not applicable", result.Reason))
			return
		}
		promoCode = result.Promo
	}

	currentTier := h.access.EffectiveTierFor(r.Context(), userUID, now)
	quote := ledger.ComputeChargeablePrice(currentTier, plan, promoCode)

	order, err := h.gateway.CreateOrder(r.Context(), quote.FinalPrice, h.currency,
		"Plan "+plan.ID)
	if err != nil {
		log.Error("failed to create order at payment gateway", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment gateway error"))
		return
	}

	log.Info("order created",
		slog.String("order_id", order.TransactionID),
		slog.String("tier_id", plan.ID),
		slog.Float64("final_price", quote.FinalPrice))
	render.JSON(w, r, response.StatusOKWithData(CreateOrderResponse{
		OrderID:       order.TransactionID,
		ApprovalURL:   order.ApprovalURL,
		OriginalPrice: quote.BasePrice,
		Discount:      quote.Discount,
		FinalPrice:    quote.FinalPrice,
		IsUpgrade:     quote.IsUpgrade,
	}))
}
