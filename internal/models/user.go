// Package models содержит доменные структуры сервиса: пользователей, тарифы,
// подписки, видео и заказы платёжного провайдера.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID           int64     // Идентификатор пользователя
	Username     string    // Имя пользователя (уникальное)
	Email        string    // Электронная почта (уникальная)
	PasswordHash string    // bcrypt-хэш пароля
	DateOfBirth  time.Time // Дата рождения, проверяется один раз при регистрации
	IsSubscribed bool      // Флаг подписки, меняется только платёжным сервисом
	CreatedAt    time.Time
}
