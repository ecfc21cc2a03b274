package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Storage defines the interface for persisting and querying campaign data
type Storage interface {
	// Campaign operations
	CreateCampaign(ctx context.Context, campaign *Campaign) error
	GetCampaign(ctx context.Context, campaignID uuid.UUID) (*Campaign, error)

	// Asset and embedding operations
	Writer
	ListAssets(ctx context.Context, campaignID uuid.UUID) ([]*AssetRecord, error)
	CountAssets(ctx context.Context, campaignID uuid.UUID) (int, error)

	// Retrieval primitives
	SearchVector(ctx context.Context, campaignID uuid.UUID, vector []float32, limit int) ([]ChannelHit, error)
	SearchText(ctx context.Context, campaignID uuid.UUID, keywords string, limit int) ([]ChannelHit, error)

	// Telemetry operations
	InsertSearchMetric(ctx context.Context, metric *SearchMetric) error
	ListSearchMetrics(ctx context.Context, campaignID uuid.UUID, limit int) ([]*SearchMetric, error)
	GetSearchStats(ctx context.Context, campaignID uuid.UUID) (*SearchStats, error)

	// Status operations
	GetStatus(ctx context.Context, campaignID uuid.UUID) (*CampaignStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Writer holds the asset operations that are also available inside a transaction
type Writer interface {
	UpsertAsset(ctx context.Context, asset *AssetRecord) error
	GetAsset(ctx context.Context, assetID uuid.UUID) (*AssetRecord, error)
	DeleteAsset(ctx context.Context, assetID uuid.UUID) error
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, assetID uuid.UUID) (*Embedding, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Writer
}

// Campaign is the tenant that scopes every asset
type Campaign struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// AssetRecord is an asset row in its store-native encoding: identifiers are
// 16-byte UUID blobs, timestamps are unix milliseconds, optional text is
// nullable, and TypeData is the raw JSON payload of the RecordType variant.
type AssetRecord struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	Name          sql.NullString
	GMSummary     sql.NullString
	GMNotes       sql.NullString
	PlayerSummary sql.NullString
	PlayerNotes   sql.NullString
	RecordType    string // Empty when the row predates typed records
	TypeData      []byte // Nil when absent
	ContentHash   [32]byte
	CreatedAtMs   int64
	UpdatedAtMs   int64
}

// Embedding represents a vector embedding for an asset
type Embedding struct {
	AssetID     uuid.UUID
	Vector      []byte // Serialized float32 array
	Dimension   int
	Provider    string
	Model       string
	ContentHash [32]byte // Hash of the asset content the vector was computed from
	CreatedAt   time.Time
}

// ChannelHit is one entry of a retrieval primitive's ordered output
type ChannelHit struct {
	ID     uuid.UUID
	Score  float64 // Channel-native score, only comparable within the channel
	Record *AssetRecord
}

// ScoreDistribution summarizes result scores of a sampled search
type ScoreDistribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// SearchMetric is one persisted telemetry row per search request. The
// pointer fields are set only for sampled requests.
type SearchMetric struct {
	ID                 int64
	SearchType         string
	SearchMode         string
	CampaignID         uuid.UUID
	HasResults         bool
	ResultCount        int
	RequestedLimit     int
	MinScore           float64
	ExecutionTimeMs    float64
	EmbeddingTimeMs    float64
	VectorSearchTimeMs float64
	ConversionTimeMs   float64
	Query              string // Empty unless sampled
	QueryLength        int
	Sampled            bool

	PrecisionAtK      *float64
	RecallAtK         *float64
	F1AtK             *float64
	PrecisionAt200    *float64
	RecallAt200       *float64
	F1At200           *float64
	CoverageRatio     *float64
	TotalAssets       *int
	ScoreDistribution *ScoreDistribution

	CreatedAt time.Time
}

// SearchStats aggregates search telemetry for a campaign
type SearchStats struct {
	Searches        int
	Sampled         int
	Hits            int
	AvgExecutionMs  float64
	AvgPrecisionAtK *float64 // Nil when nothing was sampled
	AvgRecallAtK    *float64
}

// HitRate returns the fraction of searches that returned at least one result
func (s *SearchStats) HitRate() float64 {
	if s.Searches == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Searches)
}

// CampaignStatus contains statistics about a campaign's index
type CampaignStatus struct {
	Campaign        *Campaign
	AssetsCount     int
	AssetsByType    map[string]int
	EmbeddingsCount int
	IndexSizeMB     float64
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexBuilt       bool
}
