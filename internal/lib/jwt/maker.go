// Package jwt реализует выпуск и разбор токенов сессии.
//
// Токен кладётся в HttpOnly cookie и хранит идентификатор пользователя
// в поле subject.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга токенов сессии.
type Maker interface {
	GenerateToken(userID int64, username string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
	TTL() time.Duration
}

// MakerImpl подписывает токены секретным ключом (HS256).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
