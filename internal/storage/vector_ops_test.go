package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEmbedded(t *testing.T, s *SQLiteStorage, campaignID uuid.UUID, name, summary string, vector []float32) *AssetRecord {
	ctx := context.Background()
	asset := newAsset(campaignID, name, summary)
	require.NoError(t, s.UpsertAsset(ctx, asset))
	if vector != nil {
		require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
			AssetID:   asset.ID,
			Vector:    SerializeVector(vector),
			Dimension: len(vector),
			Provider:  "local",
			Model:     "hash",
		}))
	}
	return asset
}

func TestSearchVector(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)
	other := createTestCampaign(t, storage)

	exact := seedEmbedded(t, storage, campaign.ID, "Docks", "", []float32{1, 0, 0})
	near := seedEmbedded(t, storage, campaign.ID, "Pier", "", []float32{0.9, 0.1, 0})
	far := seedEmbedded(t, storage, campaign.ID, "Mountain", "", []float32{0, 0, 1})
	seedEmbedded(t, storage, campaign.ID, "Unembedded", "", nil)
	seedEmbedded(t, storage, other.ID, "Foreign Docks", "", []float32{1, 0, 0})

	hits, err := storage.SearchVector(ctx, campaign.ID, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, exact.ID, hits[0].ID)
	assert.Equal(t, near.ID, hits[1].ID)
	assert.Equal(t, far.ID, hits[2].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.InDelta(t, 0.0, hits[2].Score, 1e-6)

	// Rows travel with hits
	require.NotNil(t, hits[0].Record)
	assert.Equal(t, "Docks", hits[0].Record.Name.String)
	assert.Equal(t, campaign.ID, hits[0].Record.CampaignID)

	limited, err := storage.SearchVector(ctx, campaign.ID, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, exact.ID, limited[0].ID)
}

func TestSearchVectorEdgeCases(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)
	seedEmbedded(t, storage, campaign.ID, "Docks", "", []float32{1, 0, 0})

	tests := []struct {
		name   string
		vector []float32
		limit  int
	}{
		{"zero limit", []float32{1, 0, 0}, 0},
		{"negative limit", []float32{1, 0, 0}, -5},
		{"empty vector", nil, 10},
		{"dimension mismatch", []float32{1, 0}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := storage.SearchVector(ctx, campaign.ID, tt.vector, tt.limit)
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestSearchText(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)
	other := createTestCampaign(t, storage)

	docks := seedEmbedded(t, storage, campaign.ID, "Blackwater Docks", "Smuggler hub run by the Vex family", nil)
	seedEmbedded(t, storage, campaign.ID, "Chapel of Dawn", "Quiet shrine on the hill", nil)
	seedEmbedded(t, storage, other.ID, "Smuggler Cove", "Another campaign's smugglers", nil)

	hits, err := storage.SearchText(ctx, campaign.ID, "smuggler", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, docks.ID, hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.LessOrEqual(t, hits[0].Score, 1.0)
	require.NotNil(t, hits[0].Record)

	// Terms are OR-ed
	hits, err = storage.SearchText(ctx, campaign.ID, "smuggler shrine", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchText_LiteralOperators(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	campaign := createTestCampaign(t, storage)
	seedEmbedded(t, storage, campaign.ID, "Docks", "NOT a safe place", nil)

	queries := []string{
		`NOT`,
		`"unbalanced`,
		`docks AND (`,
		`near*`,
		`col:umn`,
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			_, err := storage.SearchText(ctx, campaign.ID, q, 10)
			assert.NoError(t, err)
		})
	}

	hits, err := storage.SearchText(ctx, campaign.ID, "NOT", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchText_NoTerms(t *testing.T) {
	storage := setupTestDB(t)
	campaign := createTestCampaign(t, storage)

	hits, err := storage.SearchText(context.Background(), campaign.ID, "  ?! -- ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"docks", `"docks"`},
		{"smuggler docks", `"smuggler" OR "docks"`},
		{`say "hi" AND bye`, `"say" OR "hi" OR "AND" OR "bye"`},
		{"Vex's crew", `"Vex" OR "s" OR "crew"`},
		{"café 42", `"café" OR "42"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFTSQuery(tt.input))
		})
	}
}

func TestNormalizeBM25(t *testing.T) {
	assert.InDelta(t, 1.0, normalizeBM25(0), 1e-9)
	assert.InDelta(t, 0.5, normalizeBM25(-50), 1e-9)
	assert.Greater(t, normalizeBM25(-1), normalizeBM25(-10))
}

func TestVectorSerialization(t *testing.T) {
	vector := []float32{0.5, -1.25, 3.0e-7, 0}
	blob := SerializeVector(vector)
	assert.Len(t, blob, 16)
	assert.Equal(t, vector, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
