package telemetry

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dshills/campaignsearch/internal/logger"
	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/pkg/types"
)

// SearchType is the search_type recorded for asset searches
const SearchType = "asset"

// MetricsStore persists search metric rows
type MetricsStore interface {
	InsertSearchMetric(ctx context.Context, metric *storage.SearchMetric) error
}

// SearchParams describes one completed search. A request counts as
// sampled only when both ExpandedResultScores and TotalItemCount are set.
type SearchParams struct {
	SearchType   string
	SearchMode   string
	CampaignID   uuid.UUID
	Query        string
	Limit        int
	MinScore     float64
	ResultScores []float64
	Timings      types.SearchTimings

	ExpandedResultScores []float64
	TotalItemCount       *int
}

// Sampled reports whether the params carry the expanded measurement
func (p SearchParams) Sampled() bool {
	return p.ExpandedResultScores != nil && p.TotalItemCount != nil
}

// Recorder turns search params into persisted rows and collector updates
type Recorder struct {
	store   MetricsStore
	metrics *Metrics
	logger  *logger.Logger
}

// NewRecorder creates a recorder. metrics may be nil.
func NewRecorder(store MetricsStore, metrics *Metrics, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{store: store, metrics: metrics, logger: log}
}

// RecordSearchMetrics persists one row for the search. It never returns an
// error or panics; failures are logged and counted.
func (r *Recorder) RecordSearchMetrics(ctx context.Context, p SearchParams) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.failed()
			r.logger.Warn("search metrics capture panicked",
				"campaign_id", p.CampaignID.String(),
				"panic", fmt.Sprint(rec),
			)
		}
	}()

	row := BuildMetric(p)
	r.metrics.observe(row.SearchMode, row.HasResults, row.Sampled, p.Timings)

	if r.store == nil {
		return
	}
	if err := r.store.InsertSearchMetric(ctx, row); err != nil {
		r.metrics.failed()
		r.logger.Warn("failed to persist search metrics",
			"campaign_id", p.CampaignID.String(),
			"mode", row.SearchMode,
			"error", err,
		)
	}
}

// BuildMetric converts search params into the persisted row shape
func BuildMetric(p SearchParams) *storage.SearchMetric {
	searchType := p.SearchType
	if searchType == "" {
		searchType = SearchType
	}

	row := &storage.SearchMetric{
		SearchType:         searchType,
		SearchMode:         p.SearchMode,
		CampaignID:         p.CampaignID,
		HasResults:         len(p.ResultScores) > 0,
		ResultCount:        len(p.ResultScores),
		RequestedLimit:     p.Limit,
		MinScore:           p.MinScore,
		ExecutionTimeMs:    millis(p.Timings.Total),
		EmbeddingTimeMs:    millis(p.Timings.Embedding),
		VectorSearchTimeMs: millis(p.Timings.VectorSearch),
		ConversionTimeMs:   millis(p.Timings.Conversion),
		QueryLength:        utf8.RuneCountInString(p.Query),
	}

	if !p.Sampled() {
		return row
	}

	total := *p.TotalItemCount
	q := ComputeQuality(len(p.ResultScores), p.Limit, len(p.ExpandedResultScores), total)
	dist := ComputeDistribution(p.ResultScores)

	row.Sampled = true
	row.Query = p.Query
	row.PrecisionAtK = &q.PrecisionAtK
	row.RecallAtK = &q.RecallAtK
	row.F1AtK = &q.F1AtK
	row.PrecisionAt200 = &q.PrecisionAt200
	row.RecallAt200 = &q.RecallAt200
	row.F1At200 = &q.F1At200
	row.CoverageRatio = &q.CoverageRatio
	row.TotalAssets = &total
	row.ScoreDistribution = &dist
	return row
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
