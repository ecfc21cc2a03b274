package searcher

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/pkg/types"
)

func nullText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func validRecord() *storage.AssetRecord {
	return &storage.AssetRecord{
		ID:          uuid.New(),
		CampaignID:  uuid.New(),
		Name:        nullText("Captain Vex"),
		GMSummary:   nullText("Runs the smuggling ring at Blackwater Docks"),
		RecordType:  "npc",
		TypeData:    []byte(`{"npc":{"role":"smuggler","traits":["scarred","patient"]}}`),
		CreatedAtMs: 1700000000000,
		UpdatedAtMs: 1700000500000,
	}
}

func TestMaterialize(t *testing.T) {
	rec := validRecord()

	asset, err := Materialize(rec)
	require.NoError(t, err)

	assert.Equal(t, rec.ID.String(), asset.ID)
	assert.Equal(t, rec.CampaignID.String(), asset.CampaignID)
	assert.Equal(t, "Captain Vex", asset.Name)
	assert.Equal(t, "Runs the smuggling ring at Blackwater Docks", asset.GMSummary)
	assert.Equal(t, "", asset.GMNotes)
	assert.Equal(t, "", asset.PlayerSummary)
	assert.Equal(t, types.RecordNPC, asset.RecordType)
	require.NotNil(t, asset.TypeData.NPC)
	assert.Equal(t, "smuggler", asset.TypeData.NPC.Role)
	assert.Equal(t, []string{"scarred", "patient"}, asset.TypeData.NPC.Traits)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), asset.CreatedAt)
	assert.Equal(t, time.UTC, asset.UpdatedAt.Location())
}

func TestMaterialize_ZeroTimestamps(t *testing.T) {
	rec := validRecord()
	rec.CreatedAtMs, rec.UpdatedAtMs = 0, 0

	asset, err := Materialize(rec)
	require.NoError(t, err)
	assert.True(t, asset.CreatedAt.IsZero())
	assert.True(t, asset.UpdatedAt.IsZero())
}

func TestMaterialize_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *storage.AssetRecord)
		wantErr error
	}{
		{"missing id", func(r *storage.AssetRecord) { r.ID = uuid.Nil }, types.ErrMissingAssetID},
		{"missing campaign", func(r *storage.AssetRecord) { r.CampaignID = uuid.Nil }, types.ErrMissingCampaignID},
		{"missing record type", func(r *storage.AssetRecord) { r.RecordType = "" }, types.ErrMissingRecordType},
		{"unknown record type", func(r *storage.AssetRecord) { r.RecordType = "monster" }, types.ErrUnknownRecordType},
		{"missing type data", func(r *storage.AssetRecord) { r.TypeData = nil }, types.ErrTypeDataMissing},
		{"empty type data object", func(r *storage.AssetRecord) { r.TypeData = []byte(`{}`) }, types.ErrTypeDataMissing},
		{"undecodable type data", func(r *storage.AssetRecord) { r.TypeData = []byte(`{"npc":`) }, ErrMalformedRecord},
		{"variant mismatch", func(r *storage.AssetRecord) { r.TypeData = []byte(`{"location":{"region":"Lowtown"}}`) }, types.ErrTypeDataMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)

			_, err := Materialize(rec)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestMaterialize_Nil(t *testing.T) {
	_, err := Materialize(nil)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}
