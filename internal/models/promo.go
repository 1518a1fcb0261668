package models

import (
	"time"

	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// Типы скидки промокода.
const (
	// DiscountPercentage — скидка в процентах от базовой цены.
	DiscountPercentage = "percentage"
	// DiscountFixed — фиксированная скидка, ограниченная базовой ценой.
	DiscountFixed = "fixed"
)

// PromoCode промокод, создаваемый операторами. Код уникален без учёта
// регистра. MaxRedemptions равный нулю означает отсутствие лимита,
// пустой ApplicableTiers — применимость к любому плану.
type PromoCode struct {
	ID              int         // Идентификатор
	Code            string      // Код, сравнивается без учёта регистра
	DiscountType    string      // percentage или fixed
	DiscountValue   float64     // Процент либо абсолютная сумма
	ValidFrom       time.Time   // Начало окна действия
	ValidUntil      time.Time   // Конец окна действия
	MaxRedemptions  int         // Максимум погашений, 0 — без лимита
	UsageCount      int         // Счётчик погашений
	OnePerUser      bool        // Не более одного погашения на пользователя
	ApplicableTiers []tier.Tier // Уровни планов, к которым применим код; пусто — ко всем
	CreatedAt       time.Time   // Дата создания
}

// IsValidAt сообщает, попадает ли момент now в окно действия кода.
func (p *PromoCode) IsValidAt(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidUntil)
}

// IsExhausted сообщает, исчерпан ли лимит погашений.
func (p *PromoCode) IsExhausted() bool {
	return p.MaxRedemptions > 0 && p.UsageCount >= p.MaxRedemptions
}

// AppliesToTier сообщает, применим ли код к плану заданного уровня.
func (p *PromoCode) AppliesToTier(t tier.Tier) bool {
	if len(p.ApplicableTiers) == 0 {
		return true
	}
	for _, allowed := range p.ApplicableTiers {
		if allowed == t {
			return true
		}
	}
	return false
}
