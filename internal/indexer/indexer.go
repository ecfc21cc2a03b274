package indexer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/campaignsearch/internal/config"
	"github.com/dshills/campaignsearch/internal/embedder"
	"github.com/dshills/campaignsearch/internal/logger"
	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/pkg/types"
)

// Indexing errors
var (
	ErrCampaignMismatch = errors.New("asset belongs to another campaign")
	ErrInvalidAssetID   = errors.New("asset ID is not a UUID")
)

// Indexer coordinates the ingestion pipeline: validate -> store -> embed
type Indexer struct {
	storage   storage.Storage
	embedder  embedder.Embedder
	tokenizer embedder.Tokenizer
	logger    *logger.Logger

	// Worker pool configuration
	workers int
}

// Config contains configuration for one indexing run
type Config struct {
	Workers            int  // Concurrent embedding batches (default: runtime.NumCPU())
	BatchSize          int  // Assets committed per transaction and embedded per call (default: 20)
	GenerateEmbeddings bool // Whether to embed stored assets
}

// ConfigFrom builds the default run config from the process config
func ConfigFrom(c config.Config) *Config {
	return &Config{
		Workers:            c.IndexWorkers,
		BatchSize:          20,
		GenerateEmbeddings: true,
	}
}

// Statistics contains statistics about the indexing operation
type Statistics struct {
	AssetsIndexed     int
	AssetsSkipped     int // Unchanged and already embedded
	AssetsFailed      int
	EmbeddingsCreated int
	EmbeddingsFailed  int
	Duration          time.Duration
	ErrorMessages     []string
}

// Option configures an Indexer
type Option func(*Indexer)

// WithEmbedder enables embedding generation
func WithEmbedder(e embedder.Embedder) Option {
	return func(idx *Indexer) { idx.embedder = e }
}

// WithTokenizer cuts document text to the embedder's context window
func WithTokenizer(t embedder.Tokenizer) Option {
	return func(idx *Indexer) { idx.tokenizer = t }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// New creates a new Indexer instance
func New(store storage.Storage, opts ...Option) *Indexer {
	idx := &Indexer{
		storage: store,
		logger:  logger.Nop(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// prepared is an asset ready to be written
type prepared struct {
	record *storage.AssetRecord
	text   string
}

// IndexAssets stores the given assets under campaignID and embeds the ones
// whose content changed. A nil config means defaults with embeddings on.
func (idx *Indexer) IndexAssets(ctx context.Context, campaignID uuid.UUID, assets []types.CampaignAsset, cfg *Config) (*Statistics, error) {
	run := Config{GenerateEmbeddings: true}
	if cfg != nil {
		run = *cfg
	}
	if run.Workers <= 0 {
		run.Workers = idx.workers
	}
	if run.BatchSize <= 0 {
		run.BatchSize = 20
	}
	if run.BatchSize > embedder.MaxBatchSize {
		run.BatchSize = embedder.MaxBatchSize
	}

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	if campaignID == uuid.Nil {
		return nil, types.ErrMissingCampaignID
	}
	if err := idx.ensureCampaign(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("failed to ensure campaign: %w", err)
	}

	ready := make([]prepared, 0, len(assets))
	for i := range assets {
		p, err := prepare(campaignID, &assets[i])
		if err != nil {
			stats.AssetsFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("asset %d (%s): %v", i, assets[i].Name, err))
			continue
		}
		ready = append(ready, p)
	}

	pending, err := idx.storeAssets(ctx, ready, run.BatchSize, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to store assets: %w", err)
	}

	if run.GenerateEmbeddings && idx.embedder != nil && len(pending) > 0 {
		if err := idx.embedAssets(ctx, pending, run.BatchSize, run.Workers, stats); err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("indexing complete",
		"campaign_id", campaignID.String(),
		"indexed", stats.AssetsIndexed,
		"skipped", stats.AssetsSkipped,
		"failed", stats.AssetsFailed,
		"embeddings", stats.EmbeddingsCreated,
		"duration", stats.Duration,
	)
	return stats, nil
}

// ensureCampaign creates the campaign row on first use
func (idx *Indexer) ensureCampaign(ctx context.Context, campaignID uuid.UUID) error {
	_, err := idx.storage.GetCampaign(ctx, campaignID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return idx.storage.CreateCampaign(ctx, &storage.Campaign{ID: campaignID})
}

// prepare validates an asset and converts it to its stored shape
func prepare(campaignID uuid.UUID, asset *types.CampaignAsset) (prepared, error) {
	if asset.CampaignID == "" {
		asset.CampaignID = campaignID.String()
	}
	if asset.CampaignID != campaignID.String() {
		return prepared{}, fmt.Errorf("%w: %s", ErrCampaignMismatch, asset.CampaignID)
	}
	if err := asset.Validate(); err != nil {
		return prepared{}, err
	}

	id := uuid.New()
	if asset.ID != "" {
		parsed, err := uuid.Parse(asset.ID)
		if err != nil {
			return prepared{}, fmt.Errorf("%w: %q", ErrInvalidAssetID, asset.ID)
		}
		id = parsed
	}
	asset.ID = id.String()

	typeData, err := json.Marshal(asset.TypeData)
	if err != nil {
		return prepared{}, fmt.Errorf("failed to encode type data: %w", err)
	}

	text := asset.SearchText()
	record := &storage.AssetRecord{
		ID:            id,
		CampaignID:    campaignID,
		Name:          nullString(asset.Name),
		GMSummary:     nullString(asset.GMSummary),
		GMNotes:       nullString(asset.GMNotes),
		PlayerSummary: nullString(asset.PlayerSummary),
		PlayerNotes:   nullString(asset.PlayerNotes),
		RecordType:    string(asset.RecordType),
		TypeData:      typeData,
		ContentHash:   contentHash(asset.RecordType, typeData, text),
	}
	if !asset.CreatedAt.IsZero() {
		record.CreatedAtMs = asset.CreatedAt.UnixMilli()
	}
	return prepared{record: record, text: text}, nil
}

// contentHash covers everything that feeds the stored row and its embedding
func contentHash(recordType types.RecordType, typeData []byte, text string) [32]byte {
	h := sha256.New()
	h.Write([]byte(recordType))
	h.Write([]byte{0})
	h.Write(typeData)
	h.Write([]byte{0})
	h.Write([]byte(text))

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// storeAssets upserts the assets in transaction batches and returns the ones
// that need a new embedding
func (idx *Indexer) storeAssets(ctx context.Context, assets []prepared, batchSize int, stats *Statistics) ([]prepared, error) {
	pending := make([]prepared, 0, len(assets))

	for i := 0; i < len(assets); i += batchSize {
		end := i + batchSize
		if end > len(assets) {
			end = len(assets)
		}

		stale, err := idx.storeBatch(ctx, assets[i:end], stats)
		if err != nil {
			return nil, err
		}
		pending = append(pending, stale...)
	}
	return pending, nil
}

// storeBatch writes one batch within a transaction
func (idx *Indexer) storeBatch(ctx context.Context, batch []prepared, stats *Statistics) ([]prepared, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stale := make([]prepared, 0, len(batch))
	for _, p := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		unchanged, err := idx.isUnchanged(ctx, tx, p.record)
		if err != nil {
			stats.AssetsFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", p.record.ID, err))
			continue
		}
		if unchanged {
			stats.AssetsSkipped++
			continue
		}

		if err := tx.UpsertAsset(ctx, p.record); err != nil {
			stats.AssetsFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", p.record.ID, err))
			continue
		}
		stats.AssetsIndexed++
		stale = append(stale, p)
	}

	// Commit the batch
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stale, nil
}

// isUnchanged reports whether the stored asset has the same content hash
// and an embedding computed from that content
func (idx *Indexer) isUnchanged(ctx context.Context, tx storage.Tx, record *storage.AssetRecord) (bool, error) {
	existing, err := tx.GetAsset(ctx, record.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.CampaignID != record.CampaignID {
		return false, fmt.Errorf("%w: %s", ErrCampaignMismatch, existing.CampaignID)
	}
	if existing.ContentHash != record.ContentHash {
		return false, nil
	}
	if idx.embedder == nil {
		return true, nil
	}

	emb, err := tx.GetEmbedding(ctx, record.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return emb.ContentHash == record.ContentHash && emb.Model == idx.embedder.Model(), nil
}

// embedAssets generates embeddings batch by batch on a bounded worker pool.
// A failed batch is reported in stats; the other batches still run.
func (idx *Indexer) embedAssets(ctx context.Context, assets []prepared, batchSize, workers int, stats *Statistics) error {
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	var (
		created int32
		failed  int32
		mu      sync.Mutex // Protect stats.ErrorMessages
	)

	for i := 0; i < len(assets); i += batchSize {
		end := i + batchSize
		if end > len(assets) {
			end = len(assets)
		}
		batch := assets[i:end]

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			n, err := idx.embedBatch(gctx, batch)
			atomic.AddInt32(&created, int32(n))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				// Embeddings stored before the failure stay valid
				atomic.AddInt32(&failed, int32(len(batch)-n))
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("embedding batch: %v", err))
				mu.Unlock()
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	stats.EmbeddingsCreated = int(created)
	stats.EmbeddingsFailed = int(failed)
	return err
}

func (idx *Indexer) embedBatch(ctx context.Context, batch []prepared) (int, error) {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = idx.fitWindow(p.text)
	}

	resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
		Texts: texts,
		Input: embedder.InputDocument,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Embeddings) != len(batch) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d texts", embedder.ErrProviderFailed, len(resp.Embeddings), len(batch))
	}

	for i, emb := range resp.Embeddings {
		record := &storage.Embedding{
			AssetID:     batch[i].record.ID,
			Vector:      storage.SerializeVector(emb.Vector),
			Dimension:   len(emb.Vector),
			Provider:    idx.embedder.Provider(),
			Model:       idx.embedder.Model(),
			ContentHash: batch[i].record.ContentHash,
		}
		if err := idx.storage.UpsertEmbedding(ctx, record); err != nil {
			return i, fmt.Errorf("failed to store embedding for %s: %w", batch[i].record.ID, err)
		}
	}
	return len(batch), nil
}

// fitWindow cuts text to the embedder's context window when a tokenizer is set
func (idx *Indexer) fitWindow(text string) string {
	if idx.tokenizer == nil {
		return text
	}
	window := embedder.ContextWindow(idx.embedder.Model())
	n := idx.tokenizer.Count(text)
	if n <= window {
		return text
	}
	idx.logger.Debug("document truncated", "tokens", n, "limit", window)
	return idx.tokenizer.Truncate(text, window)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
