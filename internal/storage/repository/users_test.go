package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_Users(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	id := mustCreateUser(t, s, "alice", "alice@example.com")
	require.Positive(t, id)

	t.Run("get by email", func(t *testing.T) {
		u, err := s.GetUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "alice", u.Username)
		assert.False(t, u.IsSubscribed)
		assert.Equal(t, 1990, u.DateOfBirth.Year())
	})

	t.Run("get by id", func(t *testing.T) {
		u, err := s.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", u.Email)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetUserByID(ctx, 999999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	tests := []struct {
		name      string
		username  string
		email     string
		wantField string
	}{
		{name: "duplicate username", username: "alice", email: "other@example.com", wantField: "username"},
		{name: "duplicate email", username: "bob", email: "alice@example.com", wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, testUser(tt.username, tt.email))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUserExists)
			var conflict *ConflictError
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, tt.wantField, conflict.Field)
		})
	}
}

func TestStorage_CreateUser_ConcurrentSameUsername(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateUser(ctx, testUser("racer", fmt.Sprintf("racer%d@example.com", i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrUserExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}

func TestStorage_CancelledContext(t *testing.T) {
	s := &Storage{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetUserByID(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.ListVideos(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.RevokeLapsed(ctx, now())
	assert.ErrorIs(t, err, context.Canceled)
}
