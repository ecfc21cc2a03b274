// Package indexer ingests campaign assets: it validates them, stores them in
// transaction batches and generates their embeddings.
//
// # Basic Usage
//
//	idx := indexer.New(store, indexer.WithEmbedder(emb))
//
//	stats, err := idx.IndexAssets(ctx, campaignID, assets, nil)
//
//	fmt.Printf("Indexed %d assets in %v\n", stats.AssetsIndexed, stats.Duration)
//
// # Pipeline
//
//  1. Validate: each asset's TypeData must match its RecordType. Missing
//     IDs are assigned and written back to the caller's slice.
//  2. Store: assets are upserted BatchSize at a time, one transaction per
//     batch. The keyword index follows through triggers.
//  3. Embed: changed assets are embedded BatchSize at a time on a worker
//     pool bounded by Workers.
//
// Invalid assets and failed embedding batches are counted in Statistics
// and described in ErrorMessages; the run continues.
//
// # Incremental Indexing
//
// An asset is skipped when its stored content hash matches and its
// embedding was computed from that content with the current model. The hash
// covers the record type, the encoded TypeData and the searchable text.
//
// # Locking
//
// CampaignLocks lets a caller refuse a second concurrent run for the same
// campaign without blocking:
//
//	if !locks.TryAcquire(campaignID) {
//	    return ErrIndexingInProgress
//	}
//	defer locks.Release(campaignID)
package indexer
