package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/streamvault/internal/migrations"
	"github.com/magabrotheeeer/streamvault/internal/models"
)

// setupTestStorage поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	t.Cleanup(func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return storage
}

func testUser(username, email string) models.User {
	return models.User{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$hash",
		DateOfBirth:  time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
	}
}

func mustCreateUser(t *testing.T, s *Storage, username, email string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), testUser(username, email))
	require.NoError(t, err)
	return id
}

func mustSeedPlan(t *testing.T, s *Storage) models.Plan {
	t.Helper()
	_, err := s.SeedPlans(context.Background(), models.Plan{Name: "Monthly", Price: 999, RazorpayPlanID: "plan_test"})
	require.NoError(t, err)
	plans, err := s.ListPlans(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, plans)
	return plans[0]
}

// now без наносекунд: PostgreSQL хранит время с точностью до микросекунд.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
