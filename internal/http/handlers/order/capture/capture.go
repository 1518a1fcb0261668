// Package capture обрабатывает списание средств по заказу и фиксацию покупки.
package capture

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// PaymentMethod способ оплаты, записываемый в историю платежей.
const PaymentMethod = "paypal"

// CaptureOrderRequest представляет запрос на списание по заказу.
type CaptureOrderRequest struct {
	OrderID     string `json:"order_id" validate:"required"` // Идентификатор транзакции шлюза
	TierID      string `json:"tier_id" validate:"required"`  // Идентификатор купленного плана
	PromoCodeID int    `json:"promo_code_id,omitempty"`      // Промокод, применённый при создании заказа
}

// UserState состояние пользователя после фиксации покупки.
type UserState struct {
	AccessLevel        tier.Tier  `json:"access_level"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at"`
	PaymentAmount      float64    `json:"payment_amount"`
}

// CaptureOrderResponse представляет результат фиксации покупки.
type CaptureOrderResponse struct {
	User           UserState             `json:"user"`
	PaymentDetails *models.PaymentRecord `json:"payment_details"`
}

// GatewayClient определяет интерфейс для работы с платёжным шлюзом.
type GatewayClient interface {
	CaptureOrder(ctx context.Context, transactionID string) (*paymentgateway.CaptureResult, error)
}

// LedgerService фиксирует оплаченные покупки.
type LedgerService interface {
	CommitPurchase(ctx context.Context, userUID string, plan tier.Plan, promoID int,
		paidAmount float64, method, transactionID, payerRef string, now time.Time) (*models.User, *models.PaymentRecord, error)
}

// Handler обрабатывает запросы на списание по заказу.
type Handler struct {
	log      *slog.Logger
	gateway  GatewayClient
	ledger   LedgerService
	clk      clock.Clock
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, gateway GatewayClient, ledgerService LedgerService, clk clock.Clock) *Handler {
	return &Handler{
		log:      log,
		gateway:  gateway,
		ledger:   ledgerService,
		clk:      clk,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Списать средства по заказу
// @Description Списывает средства у шлюза и фиксирует покупку: запись в историю платежей и перевод пользователя на купленный уровень. Повтор с тем же order_id состояние не меняет.
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body CaptureOrderRequest true "Данные для списания"
// @Success 200 {object} response.Response "Состояние пользователя и детали платежа"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный план"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 402 {object} response.ErrorResponse "Платёж не завершён"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного шлюза"
// @Router /orders/capture [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.order.capture"
	log := h.log.With(slog.String("op", op))

	var req CaptureOrderRequest
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

	captured, err := h.gateway.CaptureOrder(r.Context(), req.OrderID)
	if err != nil {
		log.Error("failed to capture order at payment gateway", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("payment gateway error"))
		return
	}
	if !captured.Completed {
		// Деньги не списаны: никакой мутации уровня или истории, пользователь
		// может повторить попытку.
		log.Info("payment not completed", slog.String("order_id", req.OrderID))
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.ErrorWithCode("payment was not completed", "PAYMENT_NOT_COMPLETED"))
		return
	}

	now := h.clk.Now()
	u, record, err := h.ledger.CommitPurchase(r.Context(), userUID, plan, req.PromoCodeID,
		captured.PaidAmount, PaymentMethod, req.OrderID, captured.PayerRef, now)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Error("user not found", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to commit purchase", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("order captured",
		slog.String("order_id", req.OrderID),
		slog.String("tier_id", plan.ID),
		slog.Float64("paid_amount", captured.PaidAmount))
	render.JSON(w, r, response.StatusOKWithData(CaptureOrderResponse{
		User: UserState{
			AccessLevel:        u.AccessLevel,
			SubscriptionEndsAt: u.SubscriptionEndsAt,
			PaymentAmount:      u.PaymentAmount,
		},
		PaymentDetails: record,
	}))
}
