package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/streamvault/internal/models"
)

func TestStorage_Videos(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	empty, err := s.ListVideos(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	var ids []int64
	for i := range 12 {
		v, err := s.CreateVideo(ctx, models.Video{
			Title:       fmt.Sprintf("Video %d", i),
			Description: "desc",
			Filename:    fmt.Sprintf("file_%d.mp4", i),
		})
		require.NoError(t, err)
		assert.False(t, v.CreatedAt.IsZero())
		ids = append(ids, v.ID)
	}

	t.Run("list in insertion order", func(t *testing.T) {
		videos, err := s.ListVideos(ctx)
		require.NoError(t, err)
		require.Len(t, videos, 12)
		for i, v := range videos {
			assert.Equal(t, ids[i], v.ID)
		}
	})

	t.Run("random subset without repeats", func(t *testing.T) {
		videos, err := s.RandomVideos(ctx, 9)
		require.NoError(t, err)
		require.Len(t, videos, 9)
		seen := map[int64]bool{}
		for _, v := range videos {
			assert.False(t, seen[v.ID])
			seen[v.ID] = true
		}
	})

	t.Run("get", func(t *testing.T) {
		v, err := s.GetVideo(ctx, ids[3])
		require.NoError(t, err)
		assert.Equal(t, "Video 3", v.Title)
		assert.Equal(t, "file_3.mp4", v.Filename)

		_, err = s.GetVideo(ctx, 999999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate filename", func(t *testing.T) {
		_, err := s.CreateVideo(ctx, models.Video{Title: "x", Description: "y", Filename: "file_0.mp4"})
		assert.ErrorIs(t, err, ErrFilenameTaken)
	})
}

func TestStorage_RandomVideos_FewerThanLimit(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := s.CreateVideo(ctx, models.Video{Title: "t", Description: "d", Filename: fmt.Sprintf("f%d.mov", i)})
		require.NoError(t, err)
	}

	videos, err := s.RandomVideos(ctx, 9)
	require.NoError(t, err)
	assert.Len(t, videos, 3)

	videos, err = s.RandomVideos(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, videos)
}
