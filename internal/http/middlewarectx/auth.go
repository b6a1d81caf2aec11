package middlewarectx

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
)

// LoginPath страница входа.
const LoginPath = "/login"

// RequireAuth перенаправляет анонимных пользователей на страницу входа,
// сохраняя исходный путь в параметре next.
func RequireAuth(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			log.Debug("anonymous request to protected page",
				slog.String("path", r.URL.Path),
				slog.String("request_id", middleware.GetReqID(r.Context())))
			flash.Add(w, r, flash.Info, "Please log in to access this page.")
			http.Redirect(w, r, LoginRedirect(r), http.StatusSeeOther)
		})
	}
}

// LoginRedirect адрес страницы входа с возвратом на текущую страницу.
func LoginRedirect(r *http.Request) string {
	return LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

// SafeNext возвращает next, если это локальный путь, иначе fallback.
func SafeNext(next, fallback string) string {
	if next == "" || next[0] != '/' || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
