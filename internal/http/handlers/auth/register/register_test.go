package register

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/auth"
)

// Мок сервиса регистрации
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, in auth.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, in)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newHandler(t *testing.T, svc Service) *Handler {
	t.Helper()
	v, err := view.New(newNoopLogger())
	require.NoError(t, err)
	return New(newNoopLogger(), svc, v)
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
}

func hasFlash(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == flash.CookieName && c.Value != "" {
			return true
		}
	}
	return false
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	form := url.Values{
		"username":         {"alice"},
		"email":            {"alice@example.com"},
		"date_of_birth":    {"1990-01-01"},
		"password":         {"secret"},
		"confirm_password": {"secret"},
	}
	input := auth.RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		DateOfBirth:     "1990-01-01",
		Password:        "secret",
		ConfirmPassword: "secret",
	}

	tests := []struct {
		name         string
		setupMock    func(m *ServiceMock)
		wantStatus   int
		wantLocation string
		wantBody     string
		wantFlash    bool
	}{
		{
			name: "valid registration",
			setupMock: func(m *ServiceMock) {
				m.On("Register", mock.Anything, input).Return(&models.User{ID: 1, Username: "alice"}, nil).Once()
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login",
			wantFlash:    true,
		},
		{
			name: "username taken",
			setupMock: func(m *ServiceMock) {
				m.On("Register", mock.Anything, input).
					Return(nil, apperr.Validation("username", "That username is taken. Please choose a different one.")).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "That username is taken. Please choose a different one.",
		},
		{
			name: "storage failure",
			setupMock: func(m *ServiceMock) {
				m.On("Register", mock.Anything, input).Return(nil, errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)
			handler := newHandler(t, svc)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, formRequest(form))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
				assert.NotContains(t, rec.Body.String(), "secret")
			}
			assert.Equal(t, tt.wantFlash, hasFlash(rec))
			svc.AssertExpectations(t)
		})
	}
}

func TestRegisterHandler_Form(t *testing.T) {
	handler := newHandler(t, new(ServiceMock))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/register", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="confirm_password"`)
}

func TestRegisterHandler_LoggedInRedirects(t *testing.T) {
	svc := new(ServiceMock)
	handler := newHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	req = req.WithContext(middlewarectx.WithUser(req.Context(), &models.User{ID: 1}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}
