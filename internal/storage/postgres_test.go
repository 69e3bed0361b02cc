package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-health-scanner/internal/config"
	"github.com/defi-health-scanner/internal/models"
)

func testPostgresConfig() *config.PostgresConfig {
	return &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "defi_health",
		User:           "scanner",
		Password:       os.Getenv("POSTGRES_PASSWORD"),
		MaxConnections: 4,
		MigrationsPath: "../../migrations/postgres",
	}
}

func TestPostgresPoolConfig(t *testing.T) {
	cfg := testPostgresConfig()
	cfg.Password = "secret"

	poolConfig, err := postgresPoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(4), poolConfig.MaxConns)
	assert.Equal(t, int32(2), poolConfig.MinConns)
	assert.Equal(t, "localhost", poolConfig.ConnConfig.Host)
	assert.Equal(t, "defi_health", poolConfig.ConnConfig.Database)
	assert.Equal(t, "defi-health-scanner", poolConfig.ConnConfig.RuntimeParams["application_name"])

	cfg.MaxConnections = 1
	poolConfig, err = postgresPoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), poolConfig.MinConns, "min never exceeds max")

	cfg.MaxConnections = 0
	_, err = postgresPoolConfig(cfg)
	assert.ErrorContains(t, err, "max connections out of range")
}

// openTestPostgres connects and migrates, skipping when no database is available
func openTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(testContext(t), cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, RunMigrations(cfg.URL(), cfg.MigrationsPath))
	return db
}

func TestUserRepository_RecordAccess(t *testing.T) {
	db := openTestPostgres(t)
	repo := NewUserRepository(db)
	ctx := testContext(t)

	wallet := "0x00000000000000000000000000000000000000F1"
	_, _ = db.Pool().Exec(ctx, `DELETE FROM users WHERE wallet_address = $1`, "0x00000000000000000000000000000000000000f1")

	first := time.Now().UTC().Truncate(time.Millisecond)
	user, err := repo.RecordAccess(ctx, wallet, first)
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000f1", user.WalletAddress)
	assert.Len(t, user.AccessTimes, 1)

	again, err := repo.RecordAccess(ctx, wallet, first.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Len(t, again.AccessTimes, 2)

	got, err := repo.GetByWallet(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByWallet(ctx, "0x00000000000000000000000000000000000000f2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAgentFlowRepository_CreateListGet(t *testing.T) {
	db := openTestPostgres(t)
	repo := NewAgentFlowRepository(db)
	ctx := testContext(t)

	wallet := "0x00000000000000000000000000000000000000f3"
	_, _ = db.Pool().Exec(ctx, `DELETE FROM agent_flows WHERE wallet_address = $1`, wallet)

	older := &models.AgentFlow{WalletAddress: wallet, TargetSecurityScore: 70, TopN: 1, CreatedAt: time.Now().Add(-time.Hour).UTC()}
	newer := &models.AgentFlow{WalletAddress: wallet, TargetSecurityScore: 80, TopN: 2}
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	assert.NotEmpty(t, newer.ID)

	flows, err := repo.ListByWallet(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, newer.ID, flows[0].ID)

	got, err := repo.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, got.TargetSecurityScore)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
