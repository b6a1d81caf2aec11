// Package metrics содержит prometheus-коллекторы приложения.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Причины отклонения платежа.
const (
	ReasonSignature = "signature"
	ReasonUnbound   = "unbound_order"
	ReasonStorage   = "storage"
)

// Metrics набор счётчиков платёжного потока, каталога и планировщика.
type Metrics struct {
	OrdersCreated       prometheus.Counter
	OrderErrors         prometheus.Counter
	PaymentsActivated   prometheus.Counter
	PaymentsRejected    *prometheus.CounterVec
	ProviderDuration    prometheus.Histogram
	VideosUploaded      prometheus.Counter
	SubscriptionsLapsed prometheus.Counter
}

// New регистрирует коллекторы в reg. Для тестов передаётся prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "streamvault_orders_created_total",
			Help: "Total number of payment orders created at the provider",
		}),
		OrderErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "streamvault_order_errors_total",
			Help: "Total number of failed order creations",
		}),
		PaymentsActivated: f.NewCounter(prometheus.CounterOpts{
			Name: "streamvault_payments_activated_total",
			Help: "Total number of subscriptions activated after payment",
		}),
		PaymentsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamvault_payments_rejected_total",
				Help: "Total number of rejected payment callbacks",
			},
			[]string{"reason"},
		),
		ProviderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamvault_provider_request_duration_seconds",
			Help:    "Duration of payment provider requests",
			Buckets: prometheus.DefBuckets,
		}),
		VideosUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "streamvault_videos_uploaded_total",
			Help: "Total number of uploaded videos",
		}),
		SubscriptionsLapsed: f.NewCounter(prometheus.CounterOpts{
			Name: "streamvault_subscriptions_lapsed_total",
			Help: "Total number of users whose subscription flag was revoked",
		}),
	}
}
