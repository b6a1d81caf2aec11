package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/streamvault/internal/models"
)

const videoColumns = `id, title, description, filename, created_at`

// CreateVideo сохраняет метаданные загруженного видео.
func (s *Storage) CreateVideo(ctx context.Context, v models.Video) (*models.Video, error) {
	const op = "storage.CreateVideo"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	out := v
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO videos (title, description, filename)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		v.Title, v.Description, v.Filename).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%s: %w", op, ErrFilenameTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}

// ListVideos возвращает все видео в порядке добавления.
func (s *Storage) ListVideos(ctx context.Context) ([]models.Video, error) {
	const op = "storage.ListVideos"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return videos, nil
}

// RandomVideos возвращает до limit случайных видео без повторов.
func (s *Storage) RandomVideos(ctx context.Context, limit int) ([]models.Video, error) {
	const op = "storage.RandomVideos"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	videos, err := scanVideos(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return videos, nil
}

// GetVideo возвращает видео по ID.
func (s *Storage) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	const op = "storage.GetVideo"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var v models.Video
	err := s.DB.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id).
		Scan(&v.ID, &v.Title, &v.Description, &v.Filename, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &v, nil
}

func scanVideos(rows *sql.Rows) ([]models.Video, error) {
	defer rows.Close()
	var videos []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.Filename, &v.CreatedAt); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
