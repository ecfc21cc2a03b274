package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// searchVector returns the campaign's embedded assets ordered by cosine
// similarity to queryVector, best first
func searchVector(ctx context.Context, q querier, campaignID uuid.UUID, queryVector []float32, limit int) ([]ChannelHit, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []ChannelHit{}, nil
	}
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, campaignID, queryVector, limit)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, campaignID, queryVector, limit)
}

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, q querier, campaignID uuid.UUID, queryVector []float32, limit int) ([]ChannelHit, error) {
	// vec_distance_cosine returns distance (lower is better)
	query := `
		SELECT ` + assetColumns + `,
			1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM assets a
		INNER JOIN asset_embeddings e ON a.id = e.asset_id
		WHERE a.campaign_id = ? AND e.dimension = ?
		ORDER BY similarity DESC, a.rowid
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, serializeVector(queryVector), blob(campaignID), len(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]ChannelHit, 0, limit)
	for rows.Next() {
		var similarity float64
		rec, err := scanAsset(rows, &similarity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		hits = append(hits, ChannelHit{ID: rec.ID, Score: similarity, Record: rec})
	}
	return hits, rows.Err()
}

// searchVectorFallback performs vector search using Go-based cosine similarity computation
func searchVectorFallback(ctx context.Context, q querier, campaignID uuid.UUID, queryVector []float32, limit int) ([]ChannelHit, error) {
	query := `
		SELECT ` + assetColumns + `, e.vector
		FROM assets a
		INNER JOIN asset_embeddings e ON a.id = e.asset_id
		WHERE a.campaign_id = ?
		ORDER BY a.rowid
	`
	rows, err := q.QueryContext(ctx, query, blob(campaignID))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]ChannelHit, 0, limit)
	for rows.Next() {
		var vectorBlob []byte
		rec, err := scanAsset(rows, &vectorBlob)
		if err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}
		hits = append(hits, ChannelHit{
			ID:     rec.ID,
			Score:  cosineSimilarity(queryVector, vector),
			Record: rec,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// searchText performs BM25 full-text search using FTS5. Keywords that
// contain no searchable terms match nothing.
func searchText(ctx context.Context, q querier, campaignID uuid.UUID, keywords string, limit int) ([]ChannelHit, error) {
	match := buildFTSQuery(keywords)
	if match == "" || limit <= 0 {
		return []ChannelHit{}, nil
	}

	query := `
		SELECT ` + assetColumns + `,
			bm25(assets_fts) AS score
		FROM assets_fts
		INNER JOIN assets a ON assets_fts.rowid = a.rowid
		WHERE assets_fts MATCH ?
		AND a.campaign_id = ?
		ORDER BY score, a.rowid
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, match, blob(campaignID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]ChannelHit, 0)
	for rows.Next() {
		var bm25 float64
		rec, err := scanAsset(rows, &bm25)
		if err != nil {
			return nil, err
		}
		hits = append(hits, ChannelHit{ID: rec.ID, Score: normalizeBM25(bm25), Record: rec})
	}
	return hits, rows.Err()
}

// normalizeBM25 maps an FTS5 bm25 value (negative, lower is better) into (0, 1]
func normalizeBM25(score float64) float64 {
	return 1.0 / (1.0 + math.Abs(score)/50.0)
}

// buildFTSQuery turns free-form keywords into an FTS5 MATCH expression.
// Each term is quoted so FTS5 operators and syntax characters in user
// input are matched literally; terms are OR-ed together.
func buildFTSQuery(keywords string) string {
	terms := strings.FieldsFunc(keywords, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

// sortHits sorts hits by score in descending order, keeping store order for ties
func sortHits(hits []ChannelHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector encodes a vector in the blob format stored in asset_embeddings
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a blob written by SerializeVector
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}

var _ querier = (*sql.DB)(nil)
var _ querier = (*sql.Tx)(nil)
