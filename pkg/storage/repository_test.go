package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gladys-ai/gladys/pkg/config"
	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/storage"
)

// newTestClient boots a throwaway Postgres via testcontainers-go, the
// same integration-test pattern the teacher uses across test/database.
func newTestClient(t *testing.T) *storage.Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("gladys_test"),
		tcpostgres.WithUsername("gladys"),
		tcpostgres.WithPassword("gladys"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := &config.Config{
		DBHost: host, DBPort: port.Int(), DBUser: "gladys", DBPassword: "gladys",
		DBName: "gladys_test", DBSSLMode: "disable",
		DBMaxOpenConns: 5, DBMaxIdleConns: 2,
		DBConnMaxLifetime: time.Hour, DBConnMaxIdleTime: time.Hour,
	}
	client, err := storage.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestHeuristicRoundTrip(t *testing.T) {
	client := newTestClient(t)
	repo := storage.NewRepository(client)
	ctx := context.Background()

	h := models.Heuristic{
		ID:            "h1",
		Name:          "oven timer",
		ConditionText: "the oven timer has expired and nobody has responded to it yet",
		Effects:       models.Effect{Type: models.EffectSuggest, Message: "Consider turning off the oven before it burns whatever is inside"},
		Confidence:    0.3,
		Origin:        models.OriginLearned,
		OriginID:      "resp-1",
	}
	require.NoError(t, repo.StoreHeuristic(ctx, h))

	got, err := repo.GetHeuristic(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, h.Name, got.Name)
	require.Equal(t, h.Confidence, got.Confidence)
}

func TestConfidenceUpdateInvariant(t *testing.T) {
	client := newTestClient(t)
	repo := storage.NewRepository(client)
	ctx := context.Background()

	h := models.Heuristic{
		ID: "h2", Name: "x", ConditionText: "a condition long enough to pass the quality gate word count check easily",
		Effects: models.Effect{Type: models.EffectWarn, Message: "a message long enough to also pass the same quality gate check easily here"},
		Confidence: 0.5, Origin: models.OriginLearned,
	}
	require.NoError(t, repo.StoreHeuristic(ctx, h))

	fireID := "f1"
	require.NoError(t, repo.RecordHeuristicFire(ctx, fireID, "h2", "e1", nil))

	before := 0.5
	_, after1, _, err := repo.UpdateHeuristicConfidence(ctx, "h2", true, models.FeedbackExplicit)
	require.NoError(t, err)
	require.Greater(t, after1, before)
	require.InDelta(t, 2.0/3.0, after1, 1e-9)

	fireID2 := "f2"
	require.NoError(t, repo.RecordHeuristicFire(ctx, fireID2, "h2", "e2", nil))
	_, after2, _, err := repo.UpdateHeuristicConfidence(ctx, "h2", false, models.FeedbackExplicit)
	require.NoError(t, err)
	require.InDelta(t, 0.5, after2, 1e-9)

	fires, err := repo.GetPendingFires(ctx, "h2", 0)
	require.NoError(t, err)
	require.Empty(t, fires)
}
