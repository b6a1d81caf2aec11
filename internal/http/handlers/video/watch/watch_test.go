package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

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

type CatalogMock struct {
	mock.Mock
}

func (m *CatalogMock) Get(ctx context.Context, id int64) (*models.Video, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*models.Video)
	return v, args.Error(1)
}

func (m *CatalogMock) Open(v *models.Video) (*os.File, error) {
	args := m.Called(v)
	f, _ := args.Get(0).(*os.File)
	return f, args.Error(1)
}

type GateMock struct {
	mock.Mock
}

func (m *GateMock) CanWatch(ctx context.Context, user *models.User) (payment.Decision, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(payment.Decision), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newRouter(t *testing.T, catalog Catalog, gate Gate, user *models.User) http.Handler {
	t.Helper()
	v, err := view.New(newNoopLogger())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Method(http.MethodGet, "/video/{id}", New(newNoopLogger(), catalog, gate, v))
	r.Method(http.MethodGet, "/media/{id}", NewMedia(newNoopLogger(), catalog, gate, v))
	return r
}

func TestWatchHandler_Page(t *testing.T) {
	video := &models.Video{ID: 3, Title: "Cats", Description: "Funny", Filename: "x_cats.mp4", CreatedAt: time.Now()}
	alice := &models.User{ID: 1, Username: "alice", IsSubscribed: true}

	tests := []struct {
		name         string
		path         string
		user         *models.User
		setupMocks   func(c *CatalogMock, g *GateMock)
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:       "malformed id",
			path:       "/video/abc",
			setupMocks: func(_ *CatalogMock, _ *GateMock) {},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "unknown video is 404 before gate",
			path: "/video/99",
			setupMocks: func(c *CatalogMock, _ *GateMock) {
				c.On("Get", mock.Anything, int64(99)).Return(nil, apperr.ErrNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "anonymous goes to login",
			path: "/video/3",
			setupMocks: func(c *CatalogMock, g *GateMock) {
				c.On("Get", mock.Anything, int64(3)).Return(video, nil).Once()
				g.On("CanWatch", mock.Anything, (*models.User)(nil)).Return(payment.NeedLogin, nil).Once()
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/login?next=%2Fvideo%2F3",
		},
		{
			name: "unsubscribed goes to subscribe",
			path: "/video/3",
			user: &models.User{ID: 2},
			setupMocks: func(c *CatalogMock, g *GateMock) {
				c.On("Get", mock.Anything, int64(3)).Return(video, nil).Once()
				g.On("CanWatch", mock.Anything, mock.Anything).Return(payment.NeedSubscription, nil).Once()
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/subscribe",
		},
		{
			name: "subscriber sees player",
			path: "/video/3",
			user: alice,
			setupMocks: func(c *CatalogMock, g *GateMock) {
				c.On("Get", mock.Anything, int64(3)).Return(video, nil).Once()
				g.On("CanWatch", mock.Anything, alice).Return(payment.Allow, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantBody:   `src="/media/3"`,
		},
		{
			name: "gate failure",
			path: "/video/3",
			user: alice,
			setupMocks: func(c *CatalogMock, g *GateMock) {
				c.On("Get", mock.Anything, int64(3)).Return(video, nil).Once()
				g.On("CanWatch", mock.Anything, alice).Return(payment.NeedSubscription, errors.New("db down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, g := new(CatalogMock), new(GateMock)
			tt.setupMocks(c, g)
			router := newRouter(t, c, g, tt.user)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			c.AssertExpectations(t)
			g.AssertExpectations(t)
		})
	}
}

func TestWatchHandler_Media(t *testing.T) {
	video := &models.Video{ID: 3, Title: "Cats", Filename: "x_cats.mp4", CreatedAt: time.Now()}
	alice := &models.User{ID: 1, IsSubscribed: true}

	path := filepath.Join(t.TempDir(), video.Filename)
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	t.Run("subscriber gets bytes with range support", func(t *testing.T) {
		f, err := os.Open(path)
		require.NoError(t, err)

		c, g := new(CatalogMock), new(GateMock)
		c.On("Get", mock.Anything, int64(3)).Return(video, nil).Once()
		c.On("Open", video).Return(f, nil).Once()
		g.On("CanWatch", mock.Anything, alice).Return(payment.Allow, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/media/3", nil)
		req.Header.Set("Range", "bytes=2-5")
		rec := httptest.NewRecorder()
		newRouter(t, c, g, alice).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "2345", rec.Body.String())
		assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	})

	t.Run("unsubscribed never opens the file", func(t *testing.T) {
		c, g := new(CatalogMock), new(GateMock)
		user := &models.User{ID: 2}
		c.On("Get", mock.Anything, int64(3)).Return(video, nil).Once()
		g.On("CanWatch", mock.Anything, user).Return(payment.NeedSubscription, nil).Once()

		rec := httptest.NewRecorder()
		newRouter(t, c, g, user).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/3", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		c.AssertNotCalled(t, "Open", mock.Anything)
	})
}
