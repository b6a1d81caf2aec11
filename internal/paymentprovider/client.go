// Package paymentprovider содержит клиент REST API Razorpay:
// создание заказов и проверку подписи платёжного callback.
package paymentprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/models"
)

// DefaultAPIURL базовый адрес API Razorpay.
const DefaultAPIURL = "https://api.razorpay.com/v1"

// Client клиент Razorpay. Секрет ключа используется только для
// basic-auth и проверки подписи.
type Client struct {
	keyID      string
	keySecret  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент с ограниченным по времени http.Client.
func NewClient(keyID, keySecret, apiURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		keyID:      keyID,
		keySecret:  keySecret,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// KeyID публичный идентификатор ключа, который можно отдавать в браузер.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrderRequest тело запроса POST /orders.
type CreateOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateOrder создаёт заказ у провайдера. Сетевые ошибки и неуспешные
// ответы оборачиваются в apperr.ErrExternalService.
func (c *Client) CreateOrder(ctx context.Context, in CreateOrderRequest) (*models.Order, error) {
	const op = "paymentprovider.CreateOrder"
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive", op)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/orders", in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.External(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.External(op, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return nil, apperr.External(op, fmt.Errorf("unexpected status %s: %s", resp.Status, e.Error.Description))
	}

	var o orderResponse
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, apperr.External(op, err)
	}
	if o.ID == "" {
		return nil, apperr.External(op, errors.New("empty order id in response"))
	}

	return &models.Order{
		ID:       o.ID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Receipt:  o.Receipt,
		Status:   o.Status,
	}, nil
}

// VerifyPaymentSignature проверяет, что signature равна
// hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)).
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) error {
	const op = "paymentprovider.VerifyPaymentSignature"
	if orderID == "" || paymentID == "" || signature == "" {
		return fmt.Errorf("%s: %w: missing callback parameters", op, apperr.ErrSignatureVerification)
	}

	expected := Sign(c.keySecret, orderID, paymentID)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%s: %w: malformed signature", op, apperr.ErrSignatureVerification)
	}
	want, _ := hex.DecodeString(expected)
	if !hmac.Equal(got, want) {
		return fmt.Errorf("%s: %w", op, apperr.ErrSignatureVerification)
	}
	return nil
}

// Sign вычисляет подпись callback так же, как это делает Razorpay.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
