package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/defi-health-scanner/internal/config"
	"github.com/defi-health-scanner/internal/models"
)

func openTestMongo(t *testing.T) *MongoDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	db, err := NewMongoDB(context.Background(), &config.MongoConfig{
		URI:      uri,
		Database: "defi_health_test",
		Timeout:  3 * time.Second,
	})
	if err != nil {
		t.Skipf("Skipping test - MongoDB not available: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(context.Background()) })
	return db
}

func TestPoolRepository_UpsertIsIdempotent(t *testing.T) {
	db := openTestMongo(t)
	repo := NewPoolRepository(db)
	ctx := testContext(t)

	symbol := "T" + uuid.New().String()[:6]
	pools := []models.LiquidityPool{
		{Pool: uuid.New().String(), Chain: "Sonic", Project: "test", Symbol: symbol + "-WS", TvlUsd: 100},
		{Pool: uuid.New().String(), Chain: "Sonic", Project: "test", Symbol: "USDC-" + symbol, TvlUsd: 50},
	}

	inserted, _, err := repo.UpsertMany(ctx, pools)
	require.NoError(t, err)
	assert.Equal(t, int64(2), inserted)

	pools[0].TvlUsd = 150
	inserted, _, err = repo.UpsertMany(ctx, pools)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inserted)

	found, err := repo.FindBySymbol(ctx, symbol)
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, p := range found {
		if p.Pool == pools[0].Pool {
			assert.Equal(t, 150.0, p.TvlUsd)
		}
	}
}

func TestReportRepository_Latest(t *testing.T) {
	db := openTestMongo(t)
	repo := NewReportRepository(db)
	ctx := testContext(t)

	project := "proj-" + uuid.New().String()[:6]
	_, err := repo.Latest(ctx, project)
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Save(ctx, &models.AIReport{ID: uuid.New().String(), ProjectName: project, Report: "old", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Save(ctx, &models.AIReport{ID: uuid.New().String(), ProjectName: project, Report: "new", CreatedAt: now}))

	latest, err := repo.Latest(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.Report)
}

func TestContainsFoldEscapesInput(t *testing.T) {
	filter := containsFold("fileName", "a.b(c)")
	inner := filter["fileName"].(bson.M)
	assert.Equal(t, `a\.b\(c\)`, inner["$regex"])
	assert.Equal(t, "i", inner["$options"])
}
