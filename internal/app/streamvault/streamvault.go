// Package streamvault собирает зависимости приложения и запускает HTTP-сервер.
package streamvault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/streamvault/internal/cache"
	"github.com/magabrotheeeer/streamvault/internal/config"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/jwt"
	"github.com/magabrotheeeer/streamvault/internal/lib/metrics"
	"github.com/magabrotheeeer/streamvault/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/migrations"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/paymentprovider"
	"github.com/magabrotheeeer/streamvault/internal/services/auth"
	"github.com/magabrotheeeer/streamvault/internal/services/catalog"
	"github.com/magabrotheeeer/streamvault/internal/services/payment"
	"github.com/magabrotheeeer/streamvault/internal/services/scheduler"
	"github.com/magabrotheeeer/streamvault/internal/storage/files"
	"github.com/magabrotheeeer/streamvault/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App держит HTTP-сервер и ресурсы, которые нужно закрыть при остановке.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *repository.Storage
	cache     *cache.Cache
	scheduler *scheduler.Scheduler
	closers   []func() error
}

// Services сервисы, которые обслуживают маршруты.
type Services struct {
	Auth    *auth.Service
	Catalog *catalog.Service
	Payment *payment.Service
}

// New подключается к хранилищам, применяет миграции, заполняет тарифы
// и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "streamvault.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app := &App{logger: logger, db: db}

	if err := app.init(ctx, cfg); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return app, nil
}

func (a *App) init(ctx context.Context, cfg *config.Config) error {
	if err := migrations.Run(a.db.DB, cfg.MigrationsPath); err != nil {
		return err
	}

	seeded, err := a.db.SeedPlans(ctx, models.Plan{
		Name:           "Monthly",
		Price:          999,
		RazorpayPlanID: cfg.Razorpay.SeedPlanID,
	})
	if err != nil {
		return err
	}
	if seeded {
		a.logger.Info("plans seeded")
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return err
	}

	store, err := files.New(cfg.Content.Root)
	if err != nil {
		return err
	}

	publisher, err := a.publisher(cfg.RabbitMQ)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	provider := paymentprovider.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.APIURL, cfg.Razorpay.Timeout)

	services := Services{
		Auth:    auth.New(a.logger, a.db, jwt.NewJWTMaker(cfg.Session.SecretKey, cfg.Session.TokenTTL)),
		Catalog: catalog.New(a.logger, a.db, store, a.cache, m),
		Payment: payment.New(a.logger, a.db, a.db, provider, cache.NewOrderBindings(a.cache, cfg.Razorpay.OrderTTL), publisher, m),
	}

	a.scheduler = scheduler.New(a.logger, a.db, publisher, m, cfg.Scheduler.LapsedSweepSchedule)
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	renderer, err := view.New(a.logger)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, a.logger, Deps{
		Services: services,
		View:     renderer,
		Storage:  a.db,
		Cookie: middlewarectx.SessionCookie{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.SecureCookie,
		},
		MaxUploadBytes: cfg.HTTPServer.MaxUploadBytes,
		StreamTimeout:  cfg.HTTPServer.StreamTimeout,
	})

	a.server = &http.Server{
		Addr:              cfg.HTTPServer.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTPServer.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTPServer.Timeout,
		WriteTimeout:      cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}
	return nil
}

// publisher подключается к RabbitMQ, если он настроен.
func (a *App) publisher(cfg config.RabbitMQ) (rabbitmq.Publisher, error) {
	if cfg.URL == "" {
		a.logger.Info("rabbitmq is not configured, subscription events are not published")
		return rabbitmq.NoopPublisher{}, nil
	}
	conn, err := rabbitmq.Connect(cfg.URL, cfg.MaxRetries, cfg.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		return nil, err
	}
	p := rabbitmq.NewPublisher(ch)
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// Run обслуживает запросы до отмены ctx, затем останавливает сервер и задачи.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		runErr = a.server.Shutdown(timeoutCtx)
	}

	a.close()
	return runErr
}

func (a *App) close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	// Закрываем в обратном порядке: канал раньше соединения.
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close rabbitmq resource", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis client", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close storage", sl.Err(err))
	}
}
