// Package promo реализует валидацию промокодов, расчёт скидки и атомарное
// погашение. Промокод оценивается по базовой цене покупки; вычисленная
// скидка никогда не превышает цену (пол — ноль).
package promo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/access-engine/internal/models"
	"github.com/magabrotheeeer/access-engine/internal/storage"
	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// Машиночитаемые причины отказа валидации.
const (
	ReasonNotFound          = "NOT_FOUND"
	ReasonExpired           = "EXPIRED"
	ReasonExhausted         = "EXHAUSTED"
	ReasonAlreadyRedeemed   = "ALREADY_REDEEMED"
	ReasonTierNotApplicable = "TIER_NOT_APPLICABLE"
)

// ValidationResult результат проверки промокода.
type ValidationResult struct {
	Valid  bool              // Код применим к покупке
	Reason string            // Причина отказа, пустая при успехе
	Promo  *models.PromoCode // Найденный код, nil при NOT_FOUND
}

// Repository определяет методы работы с промокодами в хранилище.
type Repository interface {
	// FindPromoCodeByCode возвращает промокод по коду без учёта регистра.
	FindPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error)
	// GetPromoCode возвращает промокод по ID.
	GetPromoCode(ctx context.Context, id int) (*models.PromoCode, error)
	// HasRedeemed сообщает, гасил ли пользователь промокод ранее.
	HasRedeemed(ctx context.Context, promoID int, userUID string) (bool, error)
	// RedeemPromo атомарно гасит промокод для пользователя.
	RedeemPromo(ctx context.Context, promoID int, userUID string, now time.Time) error
}

// Service бизнес-логика промокодов.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// Validate проверяет применимость промокода к плану для пользователя в момент
// now. Бизнес-отказы возвращаются значением с машиночитаемой причиной,
// ошибка остаётся за сбоями ввода-вывода.
func (s *Service) Validate(ctx context.Context, code, userUID, planID string, now time.Time) (ValidationResult, error) {
	const op = "promo.Validate"

	promoCode, err := s.repo.FindPromoCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrPromoNotFound) {
			return ValidationResult{Reason: ReasonNotFound}, nil
		}
		return ValidationResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if !promoCode.IsValidAt(now) {
		return ValidationResult{Reason: ReasonExpired, Promo: promoCode}, nil
	}
	if promoCode.IsExhausted() {
		return ValidationResult{Reason: ReasonExhausted, Promo: promoCode}, nil
	}

	plan, ok := tier.FindPlan(planID)
	if ok && !promoCode.AppliesToTier(plan.TierLevel) {
		return ValidationResult{Reason: ReasonTierNotApplicable, Promo: promoCode}, nil
	}

	if promoCode.OnePerUser && userUID != "" {
		redeemed, err := s.repo.HasRedeemed(ctx, promoCode.ID, userUID)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("%s: %w", op, err)
		}
		if redeemed {
			return ValidationResult{Reason: ReasonAlreadyRedeemed, Promo: promoCode}, nil
		}
	}

	return ValidationResult{Valid: true, Promo: promoCode}, nil
}

// GetByID возвращает промокод по идентификатору.
func (s *Service) GetByID(ctx context.Context, id int) (*models.PromoCode, error) {
	return s.repo.GetPromoCode(ctx, id)
}

// CalculateDiscount вычисляет скидку промокода от базовой цены.
// Процентная скидка берётся как доля цены, фиксированная ограничивается
// сверху самой ценой, поэтому итоговая цена не бывает отрицательной.
func CalculateDiscount(promoCode *models.PromoCode, basePrice float64) float64 {
	if promoCode == nil || basePrice <= 0 {
		return 0
	}
	var discount float64
	switch promoCode.DiscountType {
	case models.DiscountPercentage:
		discount = basePrice * promoCode.DiscountValue / 100
	case models.DiscountFixed:
		discount = promoCode.DiscountValue
	}
	if discount > basePrice {
		discount = basePrice
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Redeem записывает погашение промокода пользователем. Инкремент счётчика
// условный и выполняется в хранилище одной транзакцией, поэтому два
// конкурентных погашения ограниченного кода не израсходуют его дважды.
// Вызывается ровно один раз на успешную покупку.
func (s *Service) Redeem(ctx context.Context, promoID int, userUID string, now time.Time) error {
	const op = "promo.Redeem"

	if err := s.repo.RedeemPromo(ctx, promoID, userUID, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("promo code redeemed",
		slog.Int("promo_id", promoID), slog.String("user_uid", userUID))
	return nil
}
