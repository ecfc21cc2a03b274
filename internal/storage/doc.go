// Package storage provides SQLite-based persistence for campaign assets,
// their embeddings and search telemetry.
//
// # Database Schema
//
// Tables:
//   - campaigns: tenants that scope every asset
//   - assets: asset text fields, record type and JSON type data
//   - assets_fts: FTS5 external-content index over the asset text fields
//   - asset_embeddings: one vector per asset plus the content hash it was computed from
//   - search_metrics: one row per search request, quality columns set when sampled
//
// Rows use the store-native encoding described by AssetRecord: identifiers
// are 16-byte UUID blobs and timestamps are unix milliseconds.
//
// # Retrieval Primitives
//
// SearchVector and SearchText are the two channels hybrid search fuses.
// Both are scoped to one campaign and return hits best first with the full
// asset row attached:
//
//	hits, err := db.SearchVector(ctx, campaignID, queryVector, 30)
//	for _, hit := range hits {
//	    fmt.Printf("%s: %.3f\n", hit.ID, hit.Score)
//	}
//
// Vector scores are cosine similarity. Text scores are BM25 mapped into
// (0, 1]; each keyword is matched literally and keywords are OR-ed.
//
// # Transactions
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = tx.Rollback() }()
//
//	if err := tx.UpsertAsset(ctx, rec); err != nil {
//	    return err
//	}
//	if err := tx.UpsertEmbedding(ctx, emb); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and computes cosine similarity
// in Go. Building with the sqlite_vec tag switches to
// github.com/mattn/go-sqlite3 and pushes similarity into SQL:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec,sqlite_fts5"
package storage
