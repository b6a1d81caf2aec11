// Package catalog управляет каталогом видео: список, подборка, просмотр
// карточки и загрузка новых роликов.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/metrics"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/storage/files"
	"github.com/magabrotheeeer/streamvault/internal/storage/repository"
)

// TrendingLimit максимальный размер подборки.
const TrendingLimit = 9

const (
	videoCacheTTL  = time.Hour
	maxTitleLength = 100
)

// AllowedExtensions допустимые расширения загружаемых файлов.
var AllowedExtensions = []string{"mp4", "mov", "avi"}

// VideoRepository контракт хранилища видео.
type VideoRepository interface {
	CreateVideo(ctx context.Context, v models.Video) (*models.Video, error)
	ListVideos(ctx context.Context) ([]models.Video, error)
	RandomVideos(ctx context.Context, limit int) ([]models.Video, error)
	GetVideo(ctx context.Context, id int64) (*models.Video, error)
}

// FileStore контракт хранилища файлов.
type FileStore interface {
	Save(ctx context.Context, original string, r io.Reader) (string, error)
	Open(name string) (*os.File, error)
	Remove(name string) error
}

// Cache контракт кэша карточек видео.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// UploadInput данные формы загрузки.
type UploadInput struct {
	Title       string
	Description string
	Filename    string
	File        io.Reader
}

// Service сервис каталога.
type Service struct {
	log     *slog.Logger
	videos  VideoRepository
	store   FileStore
	cache   Cache
	metrics *metrics.Metrics
}

// New создаёт Service. cache и m могут быть nil.
func New(log *slog.Logger, videos VideoRepository, store FileStore, cache Cache, m *metrics.Metrics) *Service {
	return &Service{log: log, videos: videos, store: store, cache: cache, metrics: m}
}

// List возвращает все видео в порядке загрузки.
func (s *Service) List(ctx context.Context) ([]models.Video, error) {
	const op = "catalog.List"
	videos, err := s.videos.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return videos, nil
}

// Trending возвращает до TrendingLimit случайных видео.
func (s *Service) Trending(ctx context.Context) ([]models.Video, error) {
	const op = "catalog.Trending"
	videos, err := s.videos.RandomVideos(ctx, TrendingLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return videos, nil
}

// Get возвращает видео по ID или apperr.ErrNotFound.
// Видео не меняются после загрузки, поэтому карточка кэшируется.
func (s *Service) Get(ctx context.Context, id int64) (*models.Video, error) {
	const op = "catalog.Get"
	key := cacheKey(id)

	if s.cache != nil {
		var cached models.Video
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.Warn("failed to read video from cache", sl.Err(err), slog.Int64("video_id", id))
		}
		if found {
			return &cached, nil
		}
	}

	v, err := s.videos.GetVideo(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v, videoCacheTTL); err != nil {
			s.log.Warn("failed to cache video", sl.Err(err), slog.Int64("video_id", id))
		}
	}
	return v, nil
}

// Upload проверяет форму, сохраняет файл и создаёт запись о видео.
// При ошибке проверки ничего не записывается; при ошибке БД сохранённый
// файл удаляется.
func (s *Service) Upload(ctx context.Context, user *models.User, in UploadInput) (*models.Video, error) {
	const op = "catalog.Upload"
	if user == nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	switch {
	case title == "":
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("title", "This field is required."))
	case utf8.RuneCountInString(title) > maxTitleLength:
		return nil, fmt.Errorf("%s: %w", op,
			apperr.Validation("title", fmt.Sprintf("Title must be at most %d characters long.", maxTitleLength)))
	case description == "":
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("description", "This field is required."))
	case in.File == nil || in.Filename == "":
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("video_file", "This field is required."))
	case !AllowedExtension(in.Filename):
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("video_file",
			"File does not have an approved extension: "+strings.Join(AllowedExtensions, ", ")))
	}

	stored, err := s.store.Save(ctx, in.Filename, in.File)
	if errors.Is(err, files.ErrInvalidName) {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("video_file", "Invalid file name."))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v, err := s.videos.CreateVideo(ctx, models.Video{
		Title:       title,
		Description: description,
		Filename:    stored,
	})
	if err != nil {
		if rmErr := s.store.Remove(stored); rmErr != nil {
			s.log.Error("failed to remove orphaned upload", sl.Err(rmErr), slog.String("filename", stored))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.metrics != nil {
		s.metrics.VideosUploaded.Inc()
	}
	s.log.Info("video uploaded", slog.Int64("video_id", v.ID), sl.UserID(user.ID), slog.String("filename", stored))
	return v, nil
}

// Open открывает файл видео для отдачи клиенту.
func (s *Service) Open(v *models.Video) (*os.File, error) {
	const op = "catalog.Open"
	f, err := s.store.Open(v.Filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// AllowedExtension сообщает, входит ли расширение name в AllowedExtensions.
func AllowedExtension(name string) bool {
	return slices.Contains(AllowedExtensions, files.Ext(name))
}

func cacheKey(id int64) string {
	return "video:" + strconv.FormatInt(id, 10)
}
