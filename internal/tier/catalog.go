package tier

// Plan описывает покупаемый тарифный план. Каталог статичен и задаётся
// на этапе деплоя, планы неизменяемы.
type Plan struct {
	ID               string  `json:"id"`                 // Идентификатор плана
	TierLevel        Tier    `json:"tier_level"`         // Приобретаемый уровень: basic или premium
	Price            float64 `json:"price"`              // Базовая цена плана
	DurationDays     int     `json:"duration_days"`      // Срок действия подписки в днях
	UpgradeFromBasic float64 `json:"upgrade_from_basic"` // Цена апгрейда с basic, только для premium-планов; 0 — апгрейд не предусмотрен
	Currency         string  `json:"currency"`           // Валюта цены
}

// HasUpgradePrice сообщает, предусмотрена ли для плана отдельная цена
// апгрейда с basic.
func (p Plan) HasUpgradePrice() bool {
	return p.TierLevel == Premium && p.UpgradeFromBasic > 0
}

var catalog = []Plan{
	{ID: "basic-monthly", TierLevel: Basic, Price: 9.99, DurationDays: 30, Currency: "USD"},
	{ID: "basic-yearly", TierLevel: Basic, Price: 89.99, DurationDays: 365, Currency: "USD"},
	{ID: "premium-monthly", TierLevel: Premium, Price: 14.99, DurationDays: 30, Currency: "USD"},
	{ID: "premium-yearly", TierLevel: Premium, Price: 99.99, DurationDays: 365, UpgradeFromBasic: 75.00, Currency: "USD"},
}

// Plans возвращает копию каталога планов в стабильном порядке.
func Plans() []Plan {
	result := make([]Plan, len(catalog))
	copy(result, catalog)
	return result
}

// FindPlan ищет план по идентификатору.
func FindPlan(id string) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
