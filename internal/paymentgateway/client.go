// Package paymentgateway реализует HTTP-клиент внешнего платёжного шлюза.
// Шлюз непрозрачен для движка: клиент умеет создать заказ на сумму и валюту
// и списать средства по ранее созданному заказу. Webhook-и и сверка статусов
// остаются на стороне шлюза.
package paymentgateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Client клиент платёжного шлюза.
type Client struct {
	clientID   string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент шлюза.
func NewClient(clientID, secretKey, apiURL string) *Client {
	return &Client{
		clientID:   clientID,
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateOrder создаёт у шлюза заказ на указанную сумму и возвращает
// идентификатор транзакции вместе со ссылкой подтверждения.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, description string) (*Order, error) {
	const op = "paymentgateway.CreateOrder"

	reqBody := CreateOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{{
			Amount: Amount{
				Value:    strconv.FormatFloat(amount, 'f', 2, 64),
				Currency: currency,
			},
			Description: description,
		}},
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v2/checkout/orders", reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: %w", op, errors.New("unexpected status: "+resp.Status))
	}

	var orderResp CreateOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&orderResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order := &Order{TransactionID: orderResp.ID}
	for _, link := range orderResp.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = link.Href
		}
	}
	return order, nil
}

// CaptureOrder списывает средства по ранее созданному заказу.
// Незавершённое списание не является ошибкой транспорта: возвращается
// результат с Completed=false, решение остаётся за вызывающей стороной.
func (c *Client) CaptureOrder(ctx context.Context, transactionID string) (*CaptureResult, error) {
	const op = "paymentgateway.CaptureOrder"

	req, err := c.newRequest(ctx, http.MethodPost, "/v2/checkout/orders/"+transactionID+"/capture", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: %w", op, errors.New("unexpected status: "+resp.Status))
	}

	var captureResp CaptureOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&captureResp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &CaptureResult{
		Completed: captureResp.Status == "COMPLETED",
		PayerRef:  captureResp.Payer.PayerID,
	}
	for _, unit := range captureResp.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			paid, err := strconv.ParseFloat(capture.Amount.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			result.PaidAmount += paid
		}
	}
	return result, nil
}
