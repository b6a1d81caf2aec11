// Package apperr описывает классы ошибок, которые сервисы возвращают
// HTTP-слою: ошибки валидации, авторизации, отсутствия объекта, сбои
// платёжного провайдера и неверные подписи callback.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth пользователь не аутентифицирован или неверные учётные данные.
	ErrAuth = errors.New("authentication required")
	// ErrNotFound запрошенный тариф или видео не существует.
	ErrNotFound = errors.New("not found")
	// ErrExternalService провайдер недоступен или вернул некорректный ответ.
	ErrExternalService = errors.New("external service error")
	// ErrSignatureVerification подпись callback провайдера не прошла проверку.
	ErrSignatureVerification = errors.New("signature verification failed")
)

// ValidationError ошибка входных данных с указанием поля.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation создаёт ValidationError для поля field.
func Validation(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// AsValidation извлекает ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// External оборачивает сбой провайдера, сохраняя исходную причину для логов.
func External(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrExternalService, err)
}

// Retryable сообщает, имеет ли смысл повторить операцию.
func Retryable(err error) bool {
	return errors.Is(err, ErrExternalService)
}
