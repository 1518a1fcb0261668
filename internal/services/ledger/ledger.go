// Package ledger фиксирует оплаченные покупки: рассчитывает подлежащую
// оплате цену с учётом апгрейда и промокода и переводит подтверждённый
// шлюзом платёж в уровень доступа пользователя и append-only историю.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/services/access"
	"github.com/magabrotheeeer/access-engine/internal/services/promo"
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// RoutingKeyCaptured ключ маршрутизации событий о зафиксированных платежах.
const RoutingKeyCaptured = "captured"

// PriceQuote разбивка цены покупки.
type PriceQuote struct {
	BasePrice  float64 `json:"original_price"` // Цена до скидки, с учётом апгрейда
	Discount   float64 `json:"discount"`       // Скидка промокода
	FinalPrice float64 `json:"final_price"`    // Итог к оплате, всегда >= 0
	IsUpgrade  bool    `json:"is_upgrade"`     // Покупка по цене апгрейда basic -> premium
}

// PurchaseEvent событие о зафиксированном платеже для внешнего сервиса
// уведомлений.
type PurchaseEvent struct {
	UserUID       string    `json:"user_uid"`
	Amount        float64   `json:"amount"`
	ToTier        tier.Tier `json:"to_tier"`
	PlanID        string    `json:"plan_id"`
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ComputeChargeablePrice возвращает разбивку цены плана для пользователя
// с текущим уровнем current. Для premium-плана с настроенной ценой апгрейда
// пользователь уровня basic платит цену апгрейда вместо базовой. Скидка
// промокода применяется к цене, которая реально подлежит оплате.
func ComputeChargeablePrice(current tier.Tier, plan tier.Plan, promoCode *models.PromoCode) PriceQuote {
	quote := PriceQuote{BasePrice: plan.Price}
	if current == tier.Basic && plan.HasUpgradePrice() {
		quote.BasePrice = plan.UpgradeFromBasic
		quote.IsUpgrade = true
	}
	quote.Discount = promo.CalculateDiscount(promoCode, quote.BasePrice)
	quote.FinalPrice = quote.BasePrice - quote.Discount
	return quote
}

// Repository определяет методы хранилища, нужные леджеру.
type Repository interface {
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// CommitPurchase фиксирует платёж и переводит пользователя на новый уровень.
	CommitPurchase(ctx context.Context, params storage.CommitPurchaseParams) (*models.User, error)
	// FindPaymentByTransactionID возвращает запись платежа по transaction id.
	FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error)
	// ListPayments возвращает историю платежей пользователя.
	ListPayments(ctx context.Context, userUID string) ([]*models.PaymentRecord, error)
}

// EventPublisher публикует события о платежах.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// PromoRedeemer гасит промокод после успешной покупки.
type PromoRedeemer interface {
	Redeem(ctx context.Context, promoID int, userUID string, now time.Time) error
}

// Service бизнес-логика леджера покупок.
type Service struct {
	repo      Repository
	cache     access.Cache
	promos    PromoRedeemer
	publisher EventPublisher
	log       *slog.Logger
}

// New создает новый экземпляр Service. publisher может быть nil, если
// публикация событий выключена.
func New(repo Repository, cache access.Cache, promos PromoRedeemer, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		promos:    promos,
		publisher: publisher,
		log:       log,
	}
}

// CommitPurchase фиксирует списание, подтверждённое внешним шлюзом.
// Сам шлюз здесь никогда не вызывается.
//
// Операция идемпотентна по transaction id: повторный вызов после сбоя между
// списанием и фиксацией (ретрай колбэка) не добавляет вторую запись в историю
// и не передвигает срок подписки, а возвращает уже сохранённое состояние.
// Промокод promoID (0 — без промокода) гасится ровно один раз, только при
// свежей фиксации и никогда при повторе.
func (s *Service) CommitPurchase(ctx context.Context, userUID string, plan tier.Plan, promoID int,
	paidAmount float64, method, transactionID, payerRef string, now time.Time) (*models.User, *models.PaymentRecord, error) {
	const op = "ledger.CommitPurchase"

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.repo.CommitPurchase(ctx, storage.CommitPurchaseParams{
		UserUID:            userUID,
		Amount:             paidAmount,
		FromTier:           u.AccessLevel,
		ToTier:             plan.TierLevel,
		Method:             method,
		TransactionID:      transactionID,
		PayerRef:           payerRef,
		SubscriptionEndsAt: now.AddDate(0, 0, plan.DurationDays),
		Now:                now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateTransaction) {
			return s.replay(ctx, userUID, transactionID)
		}
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateUser(ctx, userUID)

	if promoID > 0 {
		// Деньги уже списаны и зафиксированы, конфликт погашения не должен
		// отменять покупку.
		if err := s.promos.Redeem(ctx, promoID, userUID, now); err != nil {
			s.log.Warn("failed to redeem promo code after purchase",
				slog.Int("promo_id", promoID), sl.Err(err))
		}
	}

	record, err := s.repo.FindPaymentByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("purchase committed",
		slog.String("user_uid", userUID),
		slog.String("plan_id", plan.ID),
		slog.String("transaction_id", transactionID))

	s.publishEvent(PurchaseEvent{
		UserUID:       userUID,
		Amount:        paidAmount,
		ToTier:        plan.TierLevel,
		PlanID:        plan.ID,
		TransactionID: transactionID,
		OccurredAt:    now,
	})

	return updated, record, nil
}

// ListPayments возвращает историю платежей пользователя.
func (s *Service) ListPayments(ctx context.Context, userUID string) ([]*models.PaymentRecord, error) {
	return s.repo.ListPayments(ctx, userUID)
}

// replay возвращает уже зафиксированное состояние для повторённого
// transaction id, ничего не изменяя.
func (s *Service) replay(ctx context.Context, userUID, transactionID string) (*models.User, *models.PaymentRecord, error) {
	const op = "ledger.replay"

	record, err := s.repo.FindPaymentByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("duplicate capture replayed without mutation",
		slog.String("transaction_id", transactionID))
	return u, record, nil
}

func (s *Service) invalidateUser(ctx context.Context, userUID string) {
	cacheKey := access.UserCacheKey(userUID)
	if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
		s.log.Warn("failed to invalidate user cache", slog.String("key", cacheKey), sl.Err(err))
	}
}

// publishEvent отправляет событие о платеже; сбой публикации не отменяет
// уже зафиксированную покупку.
func (s *Service) publishEvent(event PurchaseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(RoutingKeyCaptured, event); err != nil {
		s.log.Warn("failed to publish purchase event",
			slog.String("transaction_id", event.TransactionID), sl.Err(err))
	}
}
