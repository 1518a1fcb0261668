package models

import (
	"time"

	"github.com/magabrotheeeer/access-engine/internal/tier"
)

// PaymentRecord запись в истории платежей пользователя. История append-only:
// записи никогда не редактируются и не удаляются.
type PaymentRecord struct {
	ID            int       // Идентификатор записи
	UserUID       string    // Пользователь, совершивший платёж
	Amount        float64   // Фактически списанная сумма
	FromTier      tier.Tier // Хранимый уровень на момент покупки
	ToTier        tier.Tier // Уровень приобретённого плана
	Method        string    // Способ оплаты, например paypal
	TransactionID string    // Идентификатор транзакции шлюза, ключ идемпотентности
	PayerRef      string    // Ссылка на плательщика у шлюза
	CreatedAt     time.Time // Момент фиксации платежа
}
