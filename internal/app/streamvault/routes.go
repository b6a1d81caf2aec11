package streamvault

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/streamvault/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/auth/logout"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/health"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/payment/subscribe"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/payment/verify"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/video/list"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/video/upload"
	"github.com/magabrotheeeer/streamvault/internal/http/handlers/video/watch"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
)

// Лимиты для форм входа, регистрации и создания заказа.
const (
	formRateLimit = rate.Limit(1)
	formRateBurst = 10
)

// Deps зависимости маршрутов.
type Deps struct {
	Services       Services
	View           *view.Renderer
	Storage        health.Pinger
	Cookie         middlewarectx.SessionCookie
	MaxUploadBytes int64
	StreamTimeout  time.Duration
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.Session(logger, d.Services.Auth, d.Cookie),
	)

	limiter := middlewarectx.NewRateLimiter(formRateLimit, formRateBurst).Middleware(logger)
	videos := list.New(logger, d.Services.Catalog, d.View)
	stream := middlewarectx.StreamDeadline(logger, d.StreamTimeout)

	// Открытые страницы
	r.Method(http.MethodGet, "/", videos)
	r.Method(http.MethodGet, "/index", videos)
	r.Method(http.MethodGet, "/trending", list.NewTrending(logger, d.Services.Catalog, d.View))
	r.Method(http.MethodGet, "/video/{id}", watch.New(logger, d.Services.Catalog, d.Services.Payment, d.View))
	r.With(stream).Method(http.MethodGet, "/media/{id}", watch.NewMedia(logger, d.Services.Catalog, d.Services.Payment, d.View))

	r.Group(func(r chi.Router) {
		r.Use(limiter)
		r.Method(http.MethodPost, "/register", register.New(logger, d.Services.Auth, d.View))
		r.Method(http.MethodPost, "/login", login.New(logger, d.Services.Auth, d.View, d.Cookie))
	})
	r.Method(http.MethodGet, "/register", register.New(logger, d.Services.Auth, d.View))
	r.Method(http.MethodGet, "/login", login.New(logger, d.Services.Auth, d.View, d.Cookie))
	r.Method(http.MethodPost, "/logout", logout.New(logger, d.Cookie))

	// Страницы только для вошедших пользователей
	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.RequireAuth(logger))

		uploadHandler := upload.New(logger, d.Services.Catalog, d.View, d.MaxUploadBytes)
		r.Method(http.MethodGet, "/upload_video", uploadHandler)
		r.With(stream).Method(http.MethodPost, "/upload_video", uploadHandler)
		r.Method(http.MethodGet, "/subscribe", subscribe.NewPlans(logger, d.Services.Payment, d.View))
		r.With(limiter).Method(http.MethodGet, "/pay/{plan_id}", subscribe.NewPay(logger, d.Services.Payment, d.View))
		r.Method(http.MethodGet, "/payment_verified", verify.New(logger, d.Services.Payment))
	})

	r.Method(http.MethodGet, "/healthz", health.New(logger, d.Storage))
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(d.View.NotFound)
}
