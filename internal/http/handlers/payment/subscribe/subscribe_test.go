package subscribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/payment"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ListPlans(ctx context.Context) ([]models.Plan, error) {
	args := m.Called(ctx)
	plans, _ := args.Get(0).([]models.Plan)
	return plans, args.Error(1)
}

func (m *ServiceMock) Quote(ctx context.Context, user *models.User, planID int64) (*payment.Quote, error) {
	args := m.Called(ctx, user, planID)
	q, _ := args.Get(0).(*payment.Quote)
	return q, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newRouter(t *testing.T, svc Service, user *models.User) http.Handler {
	t.Helper()
	v, err := view.New(newNoopLogger())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middlewarectx.WithUser(req.Context(), user)))
		})
	})
	r.Method(http.MethodGet, "/subscribe", NewPlans(newNoopLogger(), svc, v))
	r.Method(http.MethodGet, "/pay/{plan_id}", NewPay(newNoopLogger(), svc, v))
	return r
}

func TestPlansHandler(t *testing.T) {
	alice := &models.User{ID: 1}
	svc := new(ServiceMock)
	svc.On("ListPlans", mock.Anything).Return([]models.Plan{{ID: 1, Name: "Monthly", Price: 999}}, nil).Once()

	rec := httptest.NewRecorder()
	newRouter(t, svc, alice).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscribe", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Monthly")
	assert.Contains(t, rec.Body.String(), "9.99")
	assert.Contains(t, rec.Body.String(), `href="/pay/1"`)
	svc.AssertExpectations(t)
}

func TestPayHandler(t *testing.T) {
	alice := &models.User{ID: 1}
	quote := &payment.Quote{
		Order: models.Order{ID: "order_abc", Amount: 999, Currency: models.Currency},
		Plan:  models.Plan{ID: 1, Name: "Monthly", Price: 999},
		KeyID: "rzp_test_key",
	}

	tests := []struct {
		name         string
		path         string
		setupMock    func(m *ServiceMock)
		wantStatus   int
		wantLocation string
		wantBody     []string
	}{
		{
			name: "renders checkout",
			path: "/pay/1",
			setupMock: func(m *ServiceMock) {
				m.On("Quote", mock.Anything, alice, int64(1)).Return(quote, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   []string{"order_abc", "rzp_test_key", "checkout.razorpay.com"},
		},
		{
			name:       "malformed plan id",
			path:       "/pay/x",
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "unknown plan",
			path: "/pay/9",
			setupMock: func(m *ServiceMock) {
				m.On("Quote", mock.Anything, alice, int64(9)).Return(nil, fmt.Errorf("payment.Quote: %w", apperr.ErrNotFound)).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "provider unavailable",
			path: "/pay/1",
			setupMock: func(m *ServiceMock) {
				m.On("Quote", mock.Anything, alice, int64(1)).
					Return(nil, apperr.External("paymentprovider.CreateOrder", errors.New("timeout"))).Once()
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/subscribe",
		},
		{
			name: "binding store failure",
			path: "/pay/1",
			setupMock: func(m *ServiceMock) {
				m.On("Quote", mock.Anything, alice, int64(1)).Return(nil, errors.New("redis down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)

			rec := httptest.NewRecorder()
			newRouter(t, svc, alice).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			for _, s := range tt.wantBody {
				assert.Contains(t, rec.Body.String(), s)
			}
			assert.NotContains(t, rec.Body.String(), "key_secret")
			svc.AssertExpectations(t)
		})
	}
}
