package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordType(t *testing.T) {
	rt, err := ParseRecordType("location")
	require.NoError(t, err)
	assert.Equal(t, RecordLocation, rt)

	_, err = ParseRecordType("")
	assert.ErrorIs(t, err, ErrMissingRecordType)

	_, err = ParseRecordType("dragon")
	assert.ErrorIs(t, err, ErrUnknownRecordType)
}

func TestTypeDataValidate(t *testing.T) {
	tests := []struct {
		name       string
		recordType RecordType
		data       TypeData
		wantErr    error
	}{
		{
			name:       "npc matches",
			recordType: RecordNPC,
			data:       TypeData{NPC: &NPCData{Role: "innkeeper"}},
		},
		{
			name:       "missing payload",
			recordType: RecordNPC,
			wantErr:    ErrTypeDataMissing,
		},
		{
			name:       "wrong variant",
			recordType: RecordLocation,
			data:       TypeData{NPC: &NPCData{}},
			wantErr:    ErrTypeDataMismatch,
		},
		{
			name:       "two variants",
			recordType: RecordNPC,
			data:       TypeData{NPC: &NPCData{}, Location: &LocationData{}},
			wantErr:    ErrTypeDataMismatch,
		},
		{
			name:       "plot urgency out of range",
			recordType: RecordPlot,
			data:       TypeData{Plot: &PlotData{Status: PlotActive, Urgency: 9}},
			wantErr:    ErrInvalidUrgency,
		},
		{
			name:       "plot bad status",
			recordType: RecordPlot,
			data:       TypeData{Plot: &PlotData{Status: "paused", Urgency: 2}},
			wantErr:    ErrInvalidPlotStatus,
		},
		{
			name:       "session event",
			recordType: RecordSessionEvent,
			data:       TypeData{SessionEvent: &SessionEventData{SessionNumber: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(tt.recordType)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCampaignAssetSearchText(t *testing.T) {
	asset := CampaignAsset{
		CampaignID: "c1",
		Name:       "Blackwater Docks",
		GMSummary:  "Smuggler hub",
		RecordType: RecordLocation,
		TypeData:   TypeData{Location: &LocationData{Region: "Lowtown", Traits: []string{"foggy", "crowded"}}},
	}

	require.NoError(t, asset.Validate())
	assert.Equal(t, "Blackwater Docks\nSmuggler hub\nLowtown; foggy, crowded", asset.SearchText())
}

func TestRankedResultValidate(t *testing.T) {
	r := RankedResult{Asset: CampaignAsset{ID: "a"}, Score: 1.2}
	assert.ErrorIs(t, r.Validate(), ErrInvalidRelevanceScore)

	r.Score = 0.5
	assert.NoError(t, r.Validate())

	r.Asset.ID = ""
	assert.ErrorIs(t, r.Validate(), ErrMissingAssetID)
}
