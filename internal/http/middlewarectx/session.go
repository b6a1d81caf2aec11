// Package middlewarectx содержит HTTP middleware: определение текущего
// пользователя по cookie сессии, обязательный вход и ограничение частоты.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User ключ текущего пользователя в контексте.
const User Key = "user"

// SessionResolver определяет пользователя по токену сессии.
type SessionResolver interface {
	CurrentUser(ctx context.Context, token string) (*models.User, error)
}

// SessionCookie параметры cookie сессии.
type SessionCookie struct {
	Name   string
	Secure bool
}

// Set записывает токен в HttpOnly cookie на время ttl.
func (c SessionCookie) Set(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear удаляет cookie сессии.
func (c SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token возвращает токен из запроса или пустую строку.
func (c SessionCookie) Token(r *http.Request) string {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Session кладёт в контекст пользователя, найденного по cookie сессии.
// Анонимный запрос и невалидная сессия проходят дальше без пользователя;
// невалидная cookie при этом удаляется.
func Session(log *slog.Logger, resolver SessionResolver, cookie SessionCookie) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Session"
			token := cookie.Token(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.CurrentUser(r.Context(), token)
			if err != nil {
				if errors.Is(err, apperr.ErrAuth) {
					cookie.Clear(w)
				} else {
					log.Error("failed to resolve session",
						slog.String("op", op),
						slog.String("request_id", middleware.GetReqID(r.Context())),
						sl.Err(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser возвращает контекст с пользователем.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, User, user)
}

// UserFromContext возвращает текущего пользователя или nil для анонимного запроса.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(User).(*models.User)
	return user
}
