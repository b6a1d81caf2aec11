package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionTerm срок действия одной оплаченной подписки.
const SubscriptionTerm = 30 * 24 * time.Hour

// Plan описывает тариф, который можно купить.
// Price хранится в минимальных единицах валюты (пайсы для INR).
type Plan struct {
	ID             int64
	Name           string
	Price          int64
	RazorpayPlanID string
}

// DisplayPrice возвращает цену в основных единицах валюты, например "9.99".
func (p Plan) DisplayPrice() string {
	return decimal.New(p.Price, -2).StringFixed(2)
}

// Subscription запись об одной покупке тарифа.
type Subscription struct {
	ID                     int64
	UserID                 int64
	PlanID                 int64
	StartDate              time.Time
	EndDate                time.Time
	RazorpaySubscriptionID string // идентификатор заказа у провайдера
}

// NewSubscription создаёт подписку со сроком SubscriptionTerm начиная с start.
func NewSubscription(userID, planID int64, orderID string, start time.Time) Subscription {
	return Subscription{
		UserID:                 userID,
		PlanID:                 planID,
		StartDate:              start,
		EndDate:                start.Add(SubscriptionTerm),
		RazorpaySubscriptionID: orderID,
	}
}

// Active сообщает, действует ли подписка в момент now.
func (s Subscription) Active(now time.Time) bool {
	return !now.Before(s.StartDate) && now.Before(s.EndDate)
}
