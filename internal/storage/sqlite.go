package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidID is returned for zero-valued identifiers
	ErrInvalidID = errors.New("invalid identifier")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps ":memory:"
	// databases on one shared connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// blob returns the 16-byte store encoding of an identifier
func blob(id uuid.UUID) []byte {
	return id[:]
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Campaign operations

func (s *SQLiteStorage) CreateCampaign(ctx context.Context, campaign *Campaign) error {
	if campaign.ID == uuid.Nil {
		campaign.ID = uuid.New()
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO campaigns (id, name, created_at) VALUES (?, ?, ?)",
		blob(campaign.ID), campaign.Name, toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	campaign.CreatedAt = fromMillis(toMillis(now))
	return nil
}

func (s *SQLiteStorage) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*Campaign, error) {
	var campaign Campaign
	var name sql.NullString
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM campaigns WHERE id = ?", blob(campaignID),
	).Scan(&campaign.ID, &name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	campaign.Name = name.String
	campaign.CreatedAt = fromMillis(createdAt)
	return &campaign, nil
}

// Asset operations

// assetColumns is the column list scanned by scanAsset, in order
const assetColumns = `a.id, a.campaign_id, a.name, a.gm_summary, a.gm_notes,
	a.player_summary, a.player_notes, a.record_type, a.type_data,
	a.content_hash, a.created_at, a.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAsset scans assetColumns followed by any extra destinations
func scanAsset(row rowScanner, extra ...interface{}) (*AssetRecord, error) {
	var rec AssetRecord
	var recordType, typeData sql.NullString
	var contentHash []byte
	dest := []interface{}{
		&rec.ID, &rec.CampaignID, &rec.Name, &rec.GMSummary, &rec.GMNotes,
		&rec.PlayerSummary, &rec.PlayerNotes, &recordType, &typeData,
		&contentHash, &rec.CreatedAtMs, &rec.UpdatedAtMs,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.RecordType = recordType.String
	if typeData.Valid {
		rec.TypeData = []byte(typeData.String)
	}
	copy(rec.ContentHash[:], contentHash)
	return &rec, nil
}

func nullableText(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStorage) upsertAssetWithQuerier(ctx context.Context, q querier, asset *AssetRecord) error {
	if asset.CampaignID == uuid.Nil {
		return fmt.Errorf("%w: campaign", ErrInvalidID)
	}
	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	nowMs := toMillis(s.now())
	if asset.CreatedAtMs == 0 {
		asset.CreatedAtMs = nowMs
	}
	asset.UpdatedAtMs = nowMs

	query := `
		INSERT INTO assets (id, campaign_id, name, gm_summary, gm_notes, player_summary,
		                    player_notes, record_type, type_data, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			gm_summary = excluded.gm_summary,
			gm_notes = excluded.gm_notes,
			player_summary = excluded.player_summary,
			player_notes = excluded.player_notes,
			record_type = excluded.record_type,
			type_data = excluded.type_data,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
		WHERE assets.campaign_id = excluded.campaign_id
	`
	result, err := q.ExecContext(ctx, query,
		blob(asset.ID), blob(asset.CampaignID), asset.Name, asset.GMSummary, asset.GMNotes,
		asset.PlayerSummary, asset.PlayerNotes, nullableString(asset.RecordType),
		nullableText(asset.TypeData), asset.ContentHash[:], asset.CreatedAtMs, asset.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("failed to upsert asset: %w", err)
	}

	// The conflict clause refuses to move an asset between campaigns
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: asset %s belongs to another campaign", ErrAlreadyExists, asset.ID)
	}
	return nil
}

func (s *SQLiteStorage) UpsertAsset(ctx context.Context, asset *AssetRecord) error {
	return s.upsertAssetWithQuerier(ctx, s.db, asset)
}

func (s *SQLiteStorage) getAssetWithQuerier(ctx context.Context, q querier, assetID uuid.UUID) (*AssetRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets a WHERE a.id = ?", blob(assetID))
	rec, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStorage) GetAsset(ctx context.Context, assetID uuid.UUID) (*AssetRecord, error) {
	return s.getAssetWithQuerier(ctx, s.db, assetID)
}

func (s *SQLiteStorage) deleteAssetWithQuerier(ctx context.Context, q querier, assetID uuid.UUID) error {
	_, err := q.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", blob(assetID))
	return err
}

func (s *SQLiteStorage) DeleteAsset(ctx context.Context, assetID uuid.UUID) error {
	return s.deleteAssetWithQuerier(ctx, s.db, assetID)
}

func (s *SQLiteStorage) ListAssets(ctx context.Context, campaignID uuid.UUID) ([]*AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+assetColumns+" FROM assets a WHERE a.campaign_id = ? ORDER BY a.created_at, a.rowid",
		blob(campaignID))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var assets []*AssetRecord
	for rows.Next() {
		rec, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, rec)
	}
	return assets, rows.Err()
}

func (s *SQLiteStorage) CountAssets(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets WHERE campaign_id = ?", blob(campaignID)).Scan(&count)
	return count, err
}

// Embedding operations

func (s *SQLiteStorage) upsertEmbeddingWithQuerier(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO asset_embeddings (asset_id, vector, dimension, provider, model, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at
	`
	now := s.now()
	_, err := q.ExecContext(ctx, query,
		blob(embedding.AssetID), embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, embedding.ContentHash[:], toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = fromMillis(toMillis(now))
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return s.upsertEmbeddingWithQuerier(ctx, s.db, embedding)
}

func (s *SQLiteStorage) getEmbeddingWithQuerier(ctx context.Context, q querier, assetID uuid.UUID) (*Embedding, error) {
	var emb Embedding
	var contentHash []byte
	var createdAt int64
	err := q.QueryRowContext(ctx, `
		SELECT asset_id, vector, dimension, provider, model, content_hash, created_at
		FROM asset_embeddings WHERE asset_id = ?
	`, blob(assetID)).Scan(&emb.AssetID, &emb.Vector, &emb.Dimension, &emb.Provider, &emb.Model, &contentHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(emb.ContentHash[:], contentHash)
	emb.CreatedAt = fromMillis(createdAt)
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, assetID uuid.UUID) (*Embedding, error) {
	return s.getEmbeddingWithQuerier(ctx, s.db, assetID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, campaignID uuid.UUID, queryVector []float32, limit int) ([]ChannelHit, error) {
	return searchVector(ctx, s.db, campaignID, queryVector, limit)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, campaignID uuid.UUID, keywords string, limit int) ([]ChannelHit, error) {
	return searchText(ctx, s.db, campaignID, keywords, limit)
}

// Telemetry operations

func (s *SQLiteStorage) InsertSearchMetric(ctx context.Context, m *SearchMetric) error {
	var distribution interface{}
	if m.ScoreDistribution != nil {
		raw, err := json.Marshal(m.ScoreDistribution)
		if err != nil {
			return fmt.Errorf("marshal score distribution: %w", err)
		}
		distribution = string(raw)
	}

	var totalAssets interface{}
	if m.TotalAssets != nil {
		totalAssets = *m.TotalAssets
	}

	query := `
		INSERT INTO search_metrics (
			search_type, search_mode, campaign_id, has_results, result_count, requested_limit,
			min_score, execution_time_ms, embedding_time_ms, vector_search_time_ms,
			conversion_time_ms, query, query_length, sampled,
			precision_at_k, recall_at_k, f1_at_k, precision_at_200, recall_at_200, f1_at_200,
			coverage_ratio, total_assets, score_distribution, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := s.now()
	result, err := s.db.ExecContext(ctx, query,
		m.SearchType, m.SearchMode, blob(m.CampaignID), m.HasResults, m.ResultCount, m.RequestedLimit,
		m.MinScore, m.ExecutionTimeMs, m.EmbeddingTimeMs, m.VectorSearchTimeMs,
		m.ConversionTimeMs, m.Query, m.QueryLength, m.Sampled,
		nullableFloat(m.PrecisionAtK), nullableFloat(m.RecallAtK), nullableFloat(m.F1AtK),
		nullableFloat(m.PrecisionAt200), nullableFloat(m.RecallAt200), nullableFloat(m.F1At200),
		nullableFloat(m.CoverageRatio), totalAssets, distribution, toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to insert search metric: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = id
	m.CreatedAt = fromMillis(toMillis(now))
	return nil
}

func nullableFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func (s *SQLiteStorage) ListSearchMetrics(ctx context.Context, campaignID uuid.UUID, limit int) ([]*SearchMetric, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, search_type, search_mode, campaign_id, has_results, result_count, requested_limit,
		       min_score, execution_time_ms, embedding_time_ms, vector_search_time_ms,
		       conversion_time_ms, query, query_length, sampled,
		       precision_at_k, recall_at_k, f1_at_k, precision_at_200, recall_at_200, f1_at_200,
		       coverage_ratio, total_assets, score_distribution, created_at
		FROM search_metrics
		WHERE campaign_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, blob(campaignID), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var metrics []*SearchMetric
	for rows.Next() {
		var m SearchMetric
		var pk, rk, fk, p200, r200, f200, coverage sql.NullFloat64
		var total sql.NullInt64
		var distribution sql.NullString
		var createdAt int64
		if err := rows.Scan(
			&m.ID, &m.SearchType, &m.SearchMode, &m.CampaignID, &m.HasResults, &m.ResultCount, &m.RequestedLimit,
			&m.MinScore, &m.ExecutionTimeMs, &m.EmbeddingTimeMs, &m.VectorSearchTimeMs,
			&m.ConversionTimeMs, &m.Query, &m.QueryLength, &m.Sampled,
			&pk, &rk, &fk, &p200, &r200, &f200, &coverage, &total, &distribution, &createdAt,
		); err != nil {
			return nil, err
		}
		m.PrecisionAtK, m.RecallAtK, m.F1AtK = floatPtr(pk), floatPtr(rk), floatPtr(fk)
		m.PrecisionAt200, m.RecallAt200, m.F1At200 = floatPtr(p200), floatPtr(r200), floatPtr(f200)
		m.CoverageRatio = floatPtr(coverage)
		if total.Valid {
			n := int(total.Int64)
			m.TotalAssets = &n
		}
		if distribution.Valid {
			var d ScoreDistribution
			if err := json.Unmarshal([]byte(distribution.String), &d); err != nil {
				return nil, fmt.Errorf("decode score distribution for metric %d: %w", m.ID, err)
			}
			m.ScoreDistribution = &d
		}
		m.CreatedAt = fromMillis(createdAt)
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

func (s *SQLiteStorage) GetSearchStats(ctx context.Context, campaignID uuid.UUID) (*SearchStats, error) {
	var stats SearchStats
	var avgExec, avgPrecision, avgRecall sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN sampled THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN has_results THEN 1 ELSE 0 END), 0),
		       AVG(execution_time_ms),
		       AVG(precision_at_k),
		       AVG(recall_at_k)
		FROM search_metrics
		WHERE campaign_id = ?
	`, blob(campaignID)).Scan(&stats.Searches, &stats.Sampled, &stats.Hits, &avgExec, &avgPrecision, &avgRecall)
	if err != nil {
		return nil, err
	}
	stats.AvgExecutionMs = avgExec.Float64
	stats.AvgPrecisionAtK = floatPtr(avgPrecision)
	stats.AvgRecallAtK = floatPtr(avgRecall)
	return &stats, nil
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context, campaignID uuid.UUID) (*CampaignStatus, error) {
	campaign, err := s.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	status := &CampaignStatus{
		Campaign:     campaign,
		AssetsByType: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(record_type, ''), COUNT(*) FROM assets
		WHERE campaign_id = ?
		GROUP BY record_type
	`, blob(campaignID))
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var recordType string
		var count int
		if err := rows.Scan(&recordType, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.AssetsByType[recordType] = count
		status.AssetsCount += count
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM asset_embeddings e
		JOIN assets a ON e.asset_id = a.id
		WHERE a.campaign_id = ?
	`, blob(campaignID)).Scan(&status.EmbeddingsCount)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexBuilt:       true, // Created with migrations
	}

	return status, nil
}

// Transaction implementations

func (t *sqliteTx) UpsertAsset(ctx context.Context, asset *AssetRecord) error {
	return t.storage.upsertAssetWithQuerier(ctx, t.tx, asset)
}

func (t *sqliteTx) GetAsset(ctx context.Context, assetID uuid.UUID) (*AssetRecord, error) {
	return t.storage.getAssetWithQuerier(ctx, t.tx, assetID)
}

func (t *sqliteTx) DeleteAsset(ctx context.Context, assetID uuid.UUID) error {
	return t.storage.deleteAssetWithQuerier(ctx, t.tx, assetID)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return t.storage.upsertEmbeddingWithQuerier(ctx, t.tx, embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, assetID uuid.UUID) (*Embedding, error) {
	return t.storage.getEmbeddingWithQuerier(ctx, t.tx, assetID)
}
