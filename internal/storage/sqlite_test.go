package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func createTestCampaign(t *testing.T, s *SQLiteStorage) *Campaign {
	campaign := &Campaign{Name: "Shadows over Saltmarsh"}
	require.NoError(t, s.CreateCampaign(context.Background(), campaign))
	return campaign
}

func text(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func newAsset(campaignID uuid.UUID, name, summary string) *AssetRecord {
	return &AssetRecord{
		CampaignID:  campaignID,
		Name:        text(name),
		GMSummary:   text(summary),
		RecordType:  "location",
		TypeData:    []byte(`{"location":{"region":"Lowtown"}}`),
		ContentHash: sha256.Sum256([]byte(name + summary)),
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	var version string
	err := storage.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	storage := setupTestDB(t)
	require.NoError(t, ApplyMigrations(context.Background(), storage.db))

	var count int
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count))
	assert.Equal(t, len(AllMigrations), count)
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db))

	var count int
	err := storage.db.QueryRow("SELECT COUNT(*) FROM search_metrics").Scan(&count)
	assert.Error(t, err, "search_metrics should be dropped")

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM search_metrics").Scan(&count))
}

func TestCreateCampaign(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	campaign := createTestCampaign(t, storage)
	assert.NotEqual(t, uuid.Nil, campaign.ID)
	assert.False(t, campaign.CreatedAt.IsZero())

	// Same ID again violates the primary key
	duplicate := &Campaign{ID: campaign.ID, Name: "again"}
	assert.Error(t, storage.CreateCampaign(ctx, duplicate))
}

func TestGetCampaign(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	retrieved, err := storage.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, retrieved.ID)
	assert.Equal(t, campaign.Name, retrieved.Name)

	_, err = storage.GetCampaign(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertAsset(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	asset := newAsset(campaign.ID, "Blackwater Docks", "Smuggler hub")
	require.NoError(t, storage.UpsertAsset(ctx, asset))
	assert.NotEqual(t, uuid.Nil, asset.ID)
	assert.NotZero(t, asset.CreatedAtMs)

	retrieved, err := storage.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.ID, retrieved.ID)
	assert.Equal(t, campaign.ID, retrieved.CampaignID)
	assert.Equal(t, "Blackwater Docks", retrieved.Name.String)
	assert.False(t, retrieved.GMNotes.Valid)
	assert.Equal(t, "location", retrieved.RecordType)
	assert.JSONEq(t, `{"location":{"region":"Lowtown"}}`, string(retrieved.TypeData))
	assert.Equal(t, asset.ContentHash, retrieved.ContentHash)

	// Update in place keeps the creation time
	createdAt := retrieved.CreatedAtMs
	asset.GMSummary = text("Abandoned warehouse district")
	require.NoError(t, storage.UpsertAsset(ctx, asset))

	retrieved, err = storage.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "Abandoned warehouse district", retrieved.GMSummary.String)
	assert.Equal(t, createdAt, retrieved.CreatedAtMs)
}

func TestUpsertAsset_RequiresCampaign(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.UpsertAsset(context.Background(), newAsset(uuid.Nil, "x", "y"))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestUpsertAsset_CannotMoveCampaigns(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	first := createTestCampaign(t, storage)
	second := createTestCampaign(t, storage)

	asset := newAsset(first.ID, "Blackwater Docks", "Smuggler hub")
	require.NoError(t, storage.UpsertAsset(ctx, asset))

	moved := newAsset(second.ID, "Blackwater Docks", "Smuggler hub")
	moved.ID = asset.ID
	assert.ErrorIs(t, storage.UpsertAsset(ctx, moved), ErrAlreadyExists)

	retrieved, err := storage.GetAsset(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, retrieved.CampaignID)
}

func TestGetAsset_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	_, err := storage.GetAsset(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndCountAssets(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)
	other := createTestCampaign(t, storage)

	for _, name := range []string{"Docks", "Lighthouse", "Chapel"} {
		require.NoError(t, storage.UpsertAsset(ctx, newAsset(campaign.ID, name, "")))
	}
	require.NoError(t, storage.UpsertAsset(ctx, newAsset(other.ID, "Elsewhere", "")))

	assets, err := storage.ListAssets(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, "Docks", assets[0].Name.String)

	count, err := storage.CountAssets(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = storage.CountAssets(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteAsset_CascadesEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	asset := newAsset(campaign.ID, "Docks", "Smugglers")
	require.NoError(t, storage.UpsertAsset(ctx, asset))
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		AssetID:   asset.ID,
		Vector:    SerializeVector([]float32{1, 0}),
		Dimension: 2,
		Provider:  "local",
		Model:     "hash",
	}))

	require.NoError(t, storage.DeleteAsset(ctx, asset.ID))

	_, err := storage.GetAsset(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.GetEmbedding(ctx, asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// FTS rows go with the asset
	hits, err := storage.SearchText(ctx, campaign.ID, "smugglers", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	asset := newAsset(campaign.ID, "Docks", "")
	require.NoError(t, storage.UpsertAsset(ctx, asset))

	emb := &Embedding{
		AssetID:     asset.ID,
		Vector:      SerializeVector([]float32{0.1, 0.2, 0.3}),
		Dimension:   3,
		Provider:    "local",
		Model:       "hash",
		ContentHash: asset.ContentHash,
	}
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))

	retrieved, err := storage.GetEmbedding(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, retrieved.Dimension)
	assert.Equal(t, asset.ContentHash, retrieved.ContentHash)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.3}, DeserializeVector(retrieved.Vector), 1e-6)

	// Replacing keeps one row per asset
	emb.Vector = SerializeVector([]float32{1, 1, 1})
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))

	status, err := storage.GetStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.EmbeddingsCount)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	// Rolled back writes are discarded
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	rolledBack := newAsset(campaign.ID, "Ghost Ship", "")
	require.NoError(t, tx.UpsertAsset(ctx, rolledBack))

	// Reads inside the transaction see its own writes
	inTx, err := tx.GetAsset(ctx, rolledBack.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ghost Ship", inTx.Name.String)
	require.NoError(t, tx.Rollback())

	_, err = storage.GetAsset(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Committed writes persist
	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	committed := newAsset(campaign.ID, "Lighthouse", "")
	require.NoError(t, tx.UpsertAsset(ctx, committed))
	require.NoError(t, tx.UpsertEmbedding(ctx, &Embedding{
		AssetID:   committed.ID,
		Vector:    SerializeVector([]float32{1}),
		Dimension: 1,
		Provider:  "local",
		Model:     "hash",
	}))
	require.NoError(t, tx.Commit())

	_, err = storage.GetAsset(ctx, committed.ID)
	require.NoError(t, err)
	_, err = storage.GetEmbedding(ctx, committed.ID)
	require.NoError(t, err)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	require.NoError(t, storage.UpsertAsset(ctx, newAsset(campaign.ID, "Docks", "")))
	npc := newAsset(campaign.ID, "Captain Vex", "")
	npc.RecordType = "npc"
	npc.TypeData = []byte(`{"npc":{"role":"smuggler"}}`)
	require.NoError(t, storage.UpsertAsset(ctx, npc))

	status, err := storage.GetStatus(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.AssetsCount)
	assert.Equal(t, map[string]int{"location": 1, "npc": 1}, status.AssetsByType)
	assert.Zero(t, status.EmbeddingsCount)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.False(t, status.Health.EmbeddingsAvailable)
	assert.Greater(t, status.IndexSizeMB, 0.0)

	_, err = storage.GetStatus(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchMetrics(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)

	precision, recall := 0.2, 1.0
	total := 40
	sampled := &SearchMetric{
		SearchType:      "asset",
		SearchMode:      "hybrid",
		CampaignID:      campaign.ID,
		HasResults:      true,
		ResultCount:     2,
		RequestedLimit:  10,
		MinScore:        0.5,
		ExecutionTimeMs: 12.5,
		Query:           "smuggler docks",
		QueryLength:     14,
		Sampled:         true,
		PrecisionAtK:    &precision,
		RecallAtK:       &recall,
		TotalAssets:     &total,
		ScoreDistribution: &ScoreDistribution{
			Mean: 0.75, Median: 0.75, Min: 0.5, Max: 1, StdDev: 0.25,
		},
	}
	require.NoError(t, storage.InsertSearchMetric(ctx, sampled))
	assert.Greater(t, sampled.ID, int64(0))

	plain := &SearchMetric{
		SearchType:      "asset",
		SearchMode:      "keyword",
		CampaignID:      campaign.ID,
		RequestedLimit:  10,
		ExecutionTimeMs: 7.5,
		QueryLength:     5,
	}
	require.NoError(t, storage.InsertSearchMetric(ctx, plain))

	metrics, err := storage.ListSearchMetrics(ctx, campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	// Newest first
	assert.Equal(t, "keyword", metrics[0].SearchMode)
	assert.False(t, metrics[0].Sampled)
	assert.Nil(t, metrics[0].PrecisionAtK)
	assert.Nil(t, metrics[0].ScoreDistribution)
	assert.Nil(t, metrics[0].TotalAssets)

	got := metrics[1]
	assert.True(t, got.Sampled)
	assert.True(t, got.HasResults)
	assert.Equal(t, "smuggler docks", got.Query)
	require.NotNil(t, got.PrecisionAtK)
	assert.InDelta(t, 0.2, *got.PrecisionAtK, 1e-9)
	require.NotNil(t, got.TotalAssets)
	assert.Equal(t, 40, *got.TotalAssets)
	require.NotNil(t, got.ScoreDistribution)
	assert.InDelta(t, 0.25, got.ScoreDistribution.StdDev, 1e-9)

	stats, err := storage.GetSearchStats(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Searches)
	assert.Equal(t, 1, stats.Sampled)
	assert.Equal(t, 1, stats.Hits)
	assert.InDelta(t, 10.0, stats.AvgExecutionMs, 1e-9)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
	require.NotNil(t, stats.AvgPrecisionAtK)
	assert.InDelta(t, 0.2, *stats.AvgPrecisionAtK, 1e-9)
}

func TestGetSearchStats_Empty(t *testing.T) {
	storage := setupTestDB(t)
	stats, err := storage.GetSearchStats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, stats.Searches)
	assert.Zero(t, stats.HitRate())
	assert.Nil(t, stats.AvgPrecisionAtK)
}
