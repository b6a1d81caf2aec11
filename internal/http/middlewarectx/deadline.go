package middlewarectx

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
)

// StreamDeadline продлевает дедлайны чтения и записи соединения до timeout
// для маршрутов, которые принимают или отдают видеофайлы целиком.
// Остальные маршруты ограничены таймаутами сервера. timeout <= 0 снимает
// дедлайны полностью.
func StreamDeadline(log *slog.Logger, timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var deadline time.Time
			if timeout > 0 {
				deadline = time.Now().Add(timeout)
			}

			rc := http.NewResponseController(w)
			for _, set := range []func(time.Time) error{rc.SetReadDeadline, rc.SetWriteDeadline} {
				if err := set(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
					log.Warn("failed to extend connection deadline",
						slog.String("request_id", middleware.GetReqID(r.Context())),
						slog.String("path", r.URL.Path),
						sl.Err(err))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
