package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/streamvault/internal/models"
)

// ErrBindingNotFound привязка заказа отсутствует или истекла.
var ErrBindingNotFound = errors.New("order binding not found")

const orderKeyPrefix = "order:"

// OrderBindings хранит, какой пользователь и какой тариф стоят за заказом,
// созданным у провайдера. Запись живёт ttl и удаляется после активации.
type OrderBindings struct {
	cache *Cache
	ttl   time.Duration
}

// NewOrderBindings создаёт хранилище привязок.
func NewOrderBindings(c *Cache, ttl time.Duration) *OrderBindings {
	return &OrderBindings{cache: c, ttl: ttl}
}

// Put сохраняет привязку заказа.
func (o *OrderBindings) Put(ctx context.Context, b models.OrderBinding) error {
	const op = "cache.OrderBindings.Put"
	if b.OrderID == "" {
		return fmt.Errorf("%s: empty order id", op)
	}
	if err := o.cache.Set(ctx, orderKeyPrefix+b.OrderID, b, o.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает привязку заказа orderID или ErrBindingNotFound.
func (o *OrderBindings) Get(ctx context.Context, orderID string) (*models.OrderBinding, error) {
	const op = "cache.OrderBindings.Get"
	var b models.OrderBinding
	found, err := o.cache.Get(ctx, orderKeyPrefix+orderID, &b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrBindingNotFound)
	}
	return &b, nil
}

// Delete удаляет привязку заказа.
func (o *OrderBindings) Delete(ctx context.Context, orderID string) error {
	const op = "cache.OrderBindings.Delete"
	if err := o.cache.Invalidate(ctx, orderKeyPrefix+orderID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
