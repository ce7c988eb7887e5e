//go:build integration

package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/collab-graph-service/internal/database"
	"github.com/helixir/collab-graph-service/internal/domain"
)

// setupPostgres starts a disposable Postgres, applies the migrations and
// returns a DB wrapping its pool.
func setupPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("collab_graph_test"),
		postgres.WithUsername("collabgraph"),
		postgres.WithPassword("testpassword"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := database.NewFromPool(pool, zerolog.Nop())

	migrator, err := database.NewMigrator(db, filepath.Join("..", "..", "migrations"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)

	return db
}

func TestPgCollaborationRepository_Integration(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	older := newTestReport()
	older.CompletedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	older.StartedAt = older.CompletedAt.Add(-time.Minute)

	newer := newTestReport()
	newer.CompletedAt = time.Now().UTC().Truncate(time.Microsecond)
	newer.StartedAt = newer.CompletedAt.Add(-time.Minute)
	newer.Edges = []domain.Edge{{InstitutionA: "I3", InstitutionB: "I4", CollabCount: 7}}

	t.Run("save inside a transaction", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
			repo := NewPgCollaborationRepository(tx)
			if err := repo.SaveRun(ctx, older); err != nil {
				return err
			}
			return repo.SaveRun(ctx, newer)
		})
		require.NoError(t, err)
	})

	repo := NewPgCollaborationRepository(db)

	t.Run("get run round trips", func(t *testing.T) {
		got, err := repo.GetRun(ctx, older.RunID)
		require.NoError(t, err)
		assert.Equal(t, older.Edges, got.Edges)
		assert.Equal(t, older.Institutions, got.Institutions)
		assert.True(t, older.CompletedAt.Equal(got.CompletedAt))
	})

	t.Run("latest run", func(t *testing.T) {
		got, err := repo.LatestRun(ctx)
		require.NoError(t, err)
		assert.Equal(t, newer.RunID, got.RunID)
	})

	t.Run("filtered edges", func(t *testing.T) {
		edges, err := repo.ListEdges(ctx, older.RunID, EdgeFilter{MinCount: 2})
		require.NoError(t, err)
		assert.Equal(t, []domain.Edge{{InstitutionA: "I1", InstitutionB: "I9", CollabCount: 4}}, edges)
	})

	t.Run("failed save leaves nothing behind", func(t *testing.T) {
		bad := newTestReport()
		bad.Edges = []domain.Edge{{InstitutionA: "I9", InstitutionB: "I1", CollabCount: 1}}

		err := repo.SaveRun(ctx, bad)
		require.Error(t, err)

		_, err = repo.GetRun(ctx, bad.RunID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}
