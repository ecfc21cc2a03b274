package searcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/pkg/types"
)

// ErrMalformedRecord marks a stored row that cannot become a CampaignAsset
var ErrMalformedRecord = errors.New("malformed asset record")

// Materialize converts a raw stored row into the domain asset shape.
// Identifiers become canonical UUID strings, unix-ms timestamps become UTC
// times and missing text fields become empty strings.
func Materialize(rec *storage.AssetRecord) (types.CampaignAsset, error) {
	if rec == nil {
		return types.CampaignAsset{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}
	if rec.ID == uuid.Nil {
		return types.CampaignAsset{}, fmt.Errorf("%w: %w", ErrMalformedRecord, types.ErrMissingAssetID)
	}
	if rec.CampaignID == uuid.Nil {
		return types.CampaignAsset{}, fmt.Errorf("%w: asset %s: %w", ErrMalformedRecord, rec.ID, types.ErrMissingCampaignID)
	}

	recordType, err := types.ParseRecordType(rec.RecordType)
	if err != nil {
		return types.CampaignAsset{}, fmt.Errorf("%w: asset %s: %w", ErrMalformedRecord, rec.ID, err)
	}

	if len(rec.TypeData) == 0 {
		return types.CampaignAsset{}, fmt.Errorf("%w: asset %s: %w", ErrMalformedRecord, rec.ID, types.ErrTypeDataMissing)
	}
	var data types.TypeData
	if err := json.Unmarshal(rec.TypeData, &data); err != nil {
		return types.CampaignAsset{}, fmt.Errorf("%w: asset %s: decode type data: %v", ErrMalformedRecord, rec.ID, err)
	}
	if err := data.Validate(recordType); err != nil {
		return types.CampaignAsset{}, fmt.Errorf("%w: asset %s: %w", ErrMalformedRecord, rec.ID, err)
	}

	return types.CampaignAsset{
		ID:            rec.ID.String(),
		CampaignID:    rec.CampaignID.String(),
		Name:          rec.Name.String,
		GMSummary:     rec.GMSummary.String,
		GMNotes:       rec.GMNotes.String,
		PlayerSummary: rec.PlayerSummary.String,
		PlayerNotes:   rec.PlayerNotes.String,
		RecordType:    recordType,
		TypeData:      data,
		CreatedAt:     fromUnixMillis(rec.CreatedAtMs),
		UpdatedAt:     fromUnixMillis(rec.UpdatedAtMs),
	}, nil
}

func fromUnixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
