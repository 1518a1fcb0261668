// Package models содержит доменные структуры движка доступа и монетизации:
// пользователя, промокод, запись платежа и элемент контента.
// Структуры используются в бизнес-логике и при работе с хранилищем.
package models

import (
	"time"

	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// User представляет учащегося платформы с точки зрения движка доступа.
//
// Поле AccessLevel хранимое и не является источником истины: после истечения
// подписки или пробного периода оно может отставать от реальности до
// следующего чтения. Для авторизации использовать только эффективный уровень,
// вычисленный сервисом access.
type User struct {
	UID                string     // Уникальный идентификатор пользователя
	Username           string     // Имя пользователя (уникальное)
	Email              string     // Электронная почта
	Role               tier.Role  // Роль: student, teacher или admin
	AccessLevel        tier.Tier  // Хранимый уровень доступа (кэш, не авторитетный)
	SubscriptionEndsAt *time.Time // Истечение оплаченной подписки, nil — подписки не было
	TrialEndsAt        *time.Time // Истечение пробного периода; non-nil означает "проба уже использована"
	PaymentAmount      float64    // Накопленная сумма всех платежей
	CreatedAt          time.Time  // Дата регистрации
}

// HasActiveSubscription сообщает, действует ли оплаченная подписка в момент now.
func (u *User) HasActiveSubscription(now time.Time) bool {
	return u.SubscriptionEndsAt != nil && u.SubscriptionEndsAt.After(now)
}

// HasUsedTrial сообщает, был ли когда-либо активирован пробный период.
// Истёкшая проба тоже считается использованной.
func (u *User) HasUsedTrial() bool {
	return u.TrialEndsAt != nil
}
