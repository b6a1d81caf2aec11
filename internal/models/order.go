package models

// Currency валюта всех заказов.
const Currency = "INR"

// Order заказ, созданный у платёжного провайдера на шаге выбора тарифа.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// OrderBinding связывает заказ провайдера с пользователем и тарифом.
// Хранится на стороне сервера до прихода callback.
type OrderBinding struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
	PlanID  int64  `json:"plan_id"`
	Amount  int64  `json:"amount"`
}
