package types

import "time"

// RankedResult is a fused, externally visible search hit
type RankedResult struct {
	Asset CampaignAsset
	Score float64 // Fused score normalized to [0, 1]
}

// Validate checks if the ranked result is valid
func (r *RankedResult) Validate() error {
	if r.Asset.ID == "" {
		return ErrMissingAssetID
	}
	if r.Score < 0 || r.Score > 1 {
		return ErrInvalidRelevanceScore
	}
	return nil
}

// SearchTimings records per-phase durations of a single search
type SearchTimings struct {
	Embedding    time.Duration
	VectorSearch time.Duration
	TextSearch   time.Duration
	Fusion       time.Duration
	Conversion   time.Duration
	Total        time.Duration
}

// Milliseconds returns the timings as fractional milliseconds keyed by phase
func (t SearchTimings) Milliseconds() map[string]float64 {
	return map[string]float64{
		"embedding":     ms(t.Embedding),
		"vector_search": ms(t.VectorSearch),
		"text_search":   ms(t.TextSearch),
		"fusion":        ms(t.Fusion),
		"conversion":    ms(t.Conversion),
		"total":         ms(t.Total),
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
