package types

import "errors"

// Domain errors for type validation
var (
	// Asset errors
	ErrMissingAssetID    = errors.New("asset ID is required")
	ErrMissingCampaignID = errors.New("campaign ID is required")
	ErrMissingRecordType = errors.New("record type is required")
	ErrUnknownRecordType = errors.New("unknown record type")
	ErrTypeDataMissing   = errors.New("type data is required")
	ErrTypeDataMismatch  = errors.New("type data does not match record type")
	ErrInvalidUrgency    = errors.New("plot urgency must be between 1 and 5")
	ErrInvalidPlotStatus = errors.New("invalid plot status")

	// Search result errors
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
