package paymentgateway

// Amount денежная сумма в формате шлюза: строковое значение и код валюты.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency_code"`
}

// CreateOrderRequest запрос на создание заказа у шлюза.
type CreateOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// PurchaseUnit позиция заказа.
type PurchaseUnit struct {
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

// CreateOrderResponse ответ шлюза на создание заказа.
type CreateOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// Link навигационная ссылка в ответе шлюза.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

// CaptureOrderResponse ответ шлюза на списание средств по заказу.
type CaptureOrderResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Payer         Payer  `json:"payer"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Amount Amount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// Payer сведения о плательщике у шлюза.
type Payer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
}

// Order результат создания заказа, возвращаемый клиентом.
type Order struct {
	TransactionID string // Идентификатор транзакции шлюза
	ApprovalURL   string // Ссылка для подтверждения оплаты пользователем
}

// CaptureResult результат списания средств по заказу.
type CaptureResult struct {
	Completed  bool    // Списание завершено
	PaidAmount float64 // Фактически списанная сумма
	PayerRef   string  // Ссылка на плательщика
}
