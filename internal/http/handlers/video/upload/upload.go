// Package upload обрабатывает форму загрузки видео.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/catalog"
)

// FileField имя поля файла в форме.
const FileField = "video_file"

// Файлы больше этого порога multipart-парсер пишет во временный файл.
const memoryLimit = 8 << 20

// Service описывает загрузку видео.
type Service interface {
	Upload(ctx context.Context, user *models.User, in catalog.UploadInput) (*models.Video, error)
}

// Handler обрабатывает GET и POST /upload_video.
type Handler struct {
	log      *slog.Logger
	service  Service
	view     *view.Renderer
	maxBytes int64
}

// New создаёт Handler. maxBytes ограничивает размер тела запроса.
func New(log *slog.Logger, service Service, v *view.Renderer, maxBytes int64) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		view:     v,
		maxBytes: maxBytes,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.upload"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if r.Method != http.MethodPost {
		h.view.Render(w, r, http.StatusOK, view.Upload, view.Page{Title: "Upload Video"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("upload too large", slog.Int64("limit", tooLarge.Limit))
			h.renderError(w, r, http.StatusRequestEntityTooLarge, catalog.UploadInput{},
				apperr.Validation(FileField, "File is too large."))
			return
		}
		log.Warn("failed to parse multipart form", sl.Err(err))
		h.renderError(w, r, http.StatusBadRequest, catalog.UploadInput{},
			apperr.Validation(FileField, "This field is required."))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("failed to remove multipart temp files", sl.Err(err))
		}
	}()

	in := catalog.UploadInput{
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
	}

	file, header, err := r.FormFile(FileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// Пустое поле файла отклонит сервис.
	case err != nil:
		log.Warn("failed to read uploaded file", sl.Err(err))
	default:
		defer closeFile(log, file)
		in.File = file
		in.Filename = header.Filename
	}

	user := middlewarectx.UserFromContext(r.Context())
	v, err := h.service.Upload(r.Context(), user, in)
	if err != nil {
		if ve, ok := apperr.AsValidation(err); ok {
			h.renderError(w, r, http.StatusUnprocessableEntity, in, ve)
			return
		}
		if errors.Is(err, apperr.ErrAuth) {
			http.Redirect(w, r, middlewarectx.LoginRedirect(r), http.StatusSeeOther)
			return
		}
		log.Error("failed to upload video", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}

	log.Info("video uploaded", slog.Int64("video_id", v.ID))
	flash.Add(w, r, flash.Success, "Your video has been uploaded!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, in catalog.UploadInput, ve *apperr.ValidationError) {
	in.File = nil
	h.view.Render(w, r, status, view.Upload, view.Page{
		Title:  "Upload Video",
		Form:   in,
		Errors: map[string]string{ve.Field: ve.Message},
	})
}

func closeFile(log *slog.Logger, f multipart.File) {
	if err := f.Close(); err != nil {
		log.Warn("failed to close uploaded file", sl.Err(err))
	}
}
