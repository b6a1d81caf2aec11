package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/catalog"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Upload(ctx context.Context, user *models.User, in catalog.UploadInput) (*models.Video, error) {
	var content []byte
	if in.File != nil {
		content, _ = io.ReadAll(in.File)
	}
	args := m.Called(ctx, user, in.Title, in.Description, in.Filename, string(content))
	v, _ := args.Get(0).(*models.Video)
	return v, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(FileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload_video", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	alice := &models.User{ID: 1, Username: "alice"}
	fields := map[string]string{"title": "Cats", "description": "Funny cats"}

	tests := []struct {
		name         string
		filename     string
		content      []byte
		maxBytes     int64
		setupMock    func(m *ServiceMock)
		wantStatus   int
		wantLocation string
		wantBody     string
	}{
		{
			name:     "success",
			filename: "cats.mp4",
			content:  []byte("video-bytes"),
			maxBytes: 1 << 20,
			setupMock: func(m *ServiceMock) {
				m.On("Upload", mock.Anything, alice, "Cats", "Funny cats", "cats.mp4", "video-bytes").
					Return(&models.Video{ID: 5}, nil).Once()
			},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
		{
			name:     "bad extension",
			filename: "cats.exe",
			content:  []byte("x"),
			maxBytes: 1 << 20,
			setupMock: func(m *ServiceMock) {
				m.On("Upload", mock.Anything, alice, "Cats", "Funny cats", "cats.exe", "x").
					Return(nil, apperr.Validation(FileField, "File does not have an approved extension: mp4, mov, avi")).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "File does not have an approved extension: mp4, mov, avi",
		},
		{
			name:     "missing file",
			maxBytes: 1 << 20,
			setupMock: func(m *ServiceMock) {
				m.On("Upload", mock.Anything, alice, "Cats", "Funny cats", "", "").
					Return(nil, apperr.Validation(FileField, "This field is required.")).Once()
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "This field is required.",
		},
		{
			name:       "body too large",
			filename:   "big.mp4",
			content:    bytes.Repeat([]byte("a"), 4096),
			maxBytes:   512,
			setupMock:  func(_ *ServiceMock) {},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   "File is too large.",
		},
		{
			name:     "storage failure",
			filename: "cats.mp4",
			content:  []byte("video-bytes"),
			maxBytes: 1 << 20,
			setupMock: func(m *ServiceMock) {
				m.On("Upload", mock.Anything, alice, "Cats", "Funny cats", "cats.mp4", "video-bytes").
					Return(nil, errors.New("disk full")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	v, err := view.New(newNoopLogger())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			tt.setupMock(svc)
			h := New(newNoopLogger(), svc, v, tt.maxBytes)

			req := multipartRequest(t, fields, tt.filename, tt.content)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), alice))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			}
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestUploadHandler_Form(t *testing.T) {
	v, err := view.New(newNoopLogger())
	require.NoError(t, err)
	h := New(newNoopLogger(), new(ServiceMock), v, 1<<20)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload_video", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `enctype="multipart/form-data"`)
}
