package searcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/campaignsearch/internal/config"
	"github.com/dshills/campaignsearch/internal/logger"
	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/internal/telemetry"
	"github.com/dshills/campaignsearch/pkg/types"
)

// SearchMode records which channels served a request
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

// Request limits
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Search errors
var (
	ErrCampaignRequired = errors.New("campaign ID is required")
	ErrEmptyQuery       = errors.New("query, query vector or keywords is required")
	ErrInvalidMinScore  = errors.New("min score must be between 0 and 1")
	ErrEmbeddingFailed  = errors.New("query embedding failed")
	ErrChannelFailed    = errors.New("search channel failed")
)

// Retriever is the storage side of a search
type Retriever interface {
	SearchVector(ctx context.Context, campaignID uuid.UUID, vector []float32, limit int) ([]storage.ChannelHit, error)
	SearchText(ctx context.Context, campaignID uuid.UUID, keywords string, limit int) ([]storage.ChannelHit, error)
	CountAssets(ctx context.Context, campaignID uuid.UUID) (int, error)
}

// QueryEmbedder turns query text into a vector
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// MetricsRecorder receives one capture per completed search
type MetricsRecorder interface {
	RecordSearchMetrics(ctx context.Context, p telemetry.SearchParams)
}

// Config holds the search tunables
type Config struct {
	RRFConstant               float64
	OverFetchFactor           int
	MinOverFetch              int
	MaxCandidates             int
	DegradeOnEmbeddingFailure bool
	MetricsTimeout            time.Duration
}

// DefaultConfig returns the default search tunables
func DefaultConfig() Config {
	return Config{
		RRFConstant:     DefaultRRFConstant,
		OverFetchFactor: 3,
		MinOverFetch:    30,
		MaxCandidates:   200,
		MetricsTimeout:  10 * time.Second,
	}
}

// ConfigFrom copies the search settings out of the process config
func ConfigFrom(c config.Config) Config {
	cfg := DefaultConfig()
	if c.RRFConstant > 0 {
		cfg.RRFConstant = c.RRFConstant
	}
	if c.OverFetchFactor > 0 {
		cfg.OverFetchFactor = c.OverFetchFactor
	}
	if c.MinOverFetch > 0 {
		cfg.MinOverFetch = c.MinOverFetch
	}
	if c.MaxCandidates > 0 {
		cfg.MaxCandidates = c.MaxCandidates
	}
	if c.MetricsTimeout > 0 {
		cfg.MetricsTimeout = c.MetricsTimeout
	}
	cfg.DegradeOnEmbeddingFailure = c.DegradeOnEmbeddingFailure
	return cfg
}

// SearchRequest contains parameters for a search operation. Query is
// embedded for the vector channel unless QueryVector is supplied; Keywords
// feed the keyword channel. A channel whose input is absent is not run.
type SearchRequest struct {
	CampaignID  uuid.UUID
	Query       string
	QueryVector []float32
	Keywords    string
	Limit       int
	MinScore    float64
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Assets     []types.RankedResult
	Timings    types.SearchTimings
	Mode       SearchMode
	VectorHits int
	TextHits   int
	Dropped    int // Malformed records left out of Assets
}

// Option configures a Searcher
type Option func(*Searcher)

// WithEmbedder sets the query embedder used when no vector is supplied
func WithEmbedder(e QueryEmbedder) Option {
	return func(s *Searcher) { s.embedder = e }
}

// WithRecorder enables metrics capture. sampler may be nil, in which case
// no request is sampled.
func WithRecorder(r MetricsRecorder, sampler *telemetry.Sampler) Option {
	return func(s *Searcher) {
		s.recorder = r
		s.sampler = sampler
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(s *Searcher) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithConfig replaces the default tunables
func WithConfig(cfg Config) Option {
	return func(s *Searcher) { s.cfg = cfg }
}

// Searcher coordinates the vector and keyword channels of a hybrid search
type Searcher struct {
	retriever Retriever
	embedder  QueryEmbedder
	recorder  MetricsRecorder
	sampler   *telemetry.Sampler
	logger    *logger.Logger
	tracer    trace.Tracer
	cfg       Config

	metricsWG sync.WaitGroup
}

// NewSearcher creates a new Searcher instance
func NewSearcher(retriever Retriever, opts ...Option) *Searcher {
	s := &Searcher{
		retriever: retriever,
		logger:    logger.Nop(),
		tracer:    otel.Tracer("github.com/dshills/campaignsearch/internal/searcher"),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MetricsTimeout <= 0 {
		s.cfg.MetricsTimeout = DefaultConfig().MetricsTimeout
	}
	return s
}

// Search runs a hybrid search for one campaign
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "searcher.Search")
	defer span.End()

	resp, err := s.search(ctx, &req, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("campaign_id", req.CampaignID.String()),
		attribute.String("mode", string(resp.Mode)),
		attribute.Int("limit", req.Limit),
		attribute.Int("results", len(resp.Assets)),
		attribute.Int("dropped", resp.Dropped),
	)
	return resp, nil
}

func (s *Searcher) search(ctx context.Context, req *SearchRequest, start time.Time) (*SearchResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var timings types.SearchTimings
	keywords := strings.TrimSpace(req.Keywords)

	vector, err := s.queryVector(ctx, req, &timings)
	if err != nil {
		if !s.cfg.DegradeOnEmbeddingFailure || keywords == "" {
			return nil, err
		}
		s.logger.Warn("embedding failed, continuing keyword-only",
			"campaign_id", req.CampaignID.String(),
			"error", err,
		)
		vector = nil
	}

	if len(vector) == 0 && keywords == "" {
		return nil, ErrEmptyQuery
	}

	k := s.candidateLimit(req.Limit)
	vectorHits, textHits, err := s.runChannels(ctx, req.CampaignID, vector, keywords, k, &timings)
	if err != nil {
		return nil, err
	}

	fusionStart := time.Now()
	fused := Fuse(vectorHits, textHits, s.cfg.RRFConstant)
	timings.Fusion = time.Since(fusionStart)

	conversionStart := time.Now()
	results, dropped := s.materialize(fused)
	timings.Conversion = time.Since(conversionStart)

	results = filterAndLimit(results, req.MinScore, req.Limit)
	timings.Total = time.Since(start)

	resp := &SearchResponse{
		Assets:     results,
		Timings:    timings,
		Mode:       modeFor(len(vector) > 0, keywords != ""),
		VectorHits: len(vectorHits),
		TextHits:   len(textHits),
		Dropped:    dropped,
	}

	s.dispatchMetrics(ctx, *req, vector, keywords, resp)
	return resp, nil
}

// WaitForMetrics blocks until every dispatched metrics capture has finished
func (s *Searcher) WaitForMetrics() {
	s.metricsWG.Wait()
}

func validateRequest(req *SearchRequest) error {
	if req.CampaignID == uuid.Nil {
		return ErrCampaignRequired
	}
	if strings.TrimSpace(req.Query) == "" && len(req.QueryVector) == 0 && strings.TrimSpace(req.Keywords) == "" {
		return ErrEmptyQuery
	}
	if math.IsNaN(req.MinScore) || req.MinScore < 0 || req.MinScore > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidMinScore, req.MinScore)
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

// queryVector returns the supplied vector or embeds the query text. An
// empty result means the vector channel is skipped.
func (s *Searcher) queryVector(ctx context.Context, req *SearchRequest, timings *types.SearchTimings) ([]float32, error) {
	if len(req.QueryVector) > 0 {
		return req.QueryVector, nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, nil
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no query embedder configured", ErrEmbeddingFailed)
	}

	ctx, span := s.tracer.Start(ctx, "searcher.embed")
	defer span.End()

	embedStart := time.Now()
	vector, err := s.embedder.EmbedQuery(ctx, req.Query)
	timings.Embedding = time.Since(embedStart)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// candidateLimit is how many hits each channel is asked for
func (s *Searcher) candidateLimit(limit int) int {
	k := limit * s.cfg.OverFetchFactor
	if k < s.cfg.MinOverFetch {
		k = s.cfg.MinOverFetch
	}
	if k > s.cfg.MaxCandidates {
		k = s.cfg.MaxCandidates
	}
	if k < limit {
		k = limit
	}
	return k
}

// runChannels queries the channels that have input, concurrently. A failing
// channel fails the whole call.
func (s *Searcher) runChannels(ctx context.Context, campaignID uuid.UUID, vector []float32, keywords string, k int, timings *types.SearchTimings) ([]storage.ChannelHit, []storage.ChannelHit, error) {
	var (
		vectorHits, textHits []storage.ChannelHit
		vectorTime, textTime time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)

	if len(vector) > 0 {
		g.Go(func() error {
			ctx, span := s.tracer.Start(gctx, "searcher.vector", trace.WithAttributes(attribute.Int("k", k)))
			defer span.End()

			t := time.Now()
			hits, err := s.retriever.SearchVector(ctx, campaignID, vector, k)
			vectorTime = time.Since(t)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("%w: vector: %w", ErrChannelFailed, err)
			}
			span.SetAttributes(attribute.Int("hits", len(hits)))
			vectorHits = hits
			return nil
		})
	}

	if keywords != "" {
		g.Go(func() error {
			ctx, span := s.tracer.Start(gctx, "searcher.keyword", trace.WithAttributes(attribute.Int("k", k)))
			defer span.End()

			t := time.Now()
			hits, err := s.retriever.SearchText(ctx, campaignID, keywords, k)
			textTime = time.Since(t)
			if err != nil {
				span.RecordError(err)
				return fmt.Errorf("%w: keyword: %w", ErrChannelFailed, err)
			}
			span.SetAttributes(attribute.Int("hits", len(hits)))
			textHits = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	timings.VectorSearch = vectorTime
	timings.TextSearch = textTime
	return vectorHits, textHits, nil
}

// materialize converts fused candidates in order, dropping malformed records
func (s *Searcher) materialize(fused []FusedCandidate) ([]types.RankedResult, int) {
	results := make([]types.RankedResult, 0, len(fused))
	dropped := 0
	for _, c := range fused {
		asset, err := Materialize(c.Record)
		if err != nil {
			dropped++
			s.logger.Warn("dropping malformed asset",
				"asset_id", c.ID.String(),
				"error", err,
			)
			continue
		}
		results = append(results, types.RankedResult{Asset: asset, Score: c.Score})
	}
	return results, dropped
}

func filterAndLimit(results []types.RankedResult, minScore float64, limit int) []types.RankedResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func modeFor(vector, keyword bool) SearchMode {
	switch {
	case vector && keyword:
		return SearchModeHybrid
	case vector:
		return SearchModeVector
	default:
		return SearchModeKeyword
	}
}

// dispatchMetrics hands the capture to a goroutine that outlives the
// request. The sampling decision is made here, before returning.
func (s *Searcher) dispatchMetrics(ctx context.Context, req SearchRequest, vector []float32, keywords string, resp *SearchResponse) {
	if s.recorder == nil {
		return
	}

	sampled := s.sampler.ShouldSample()
	params := telemetry.SearchParams{
		SearchType:   telemetry.SearchType,
		SearchMode:   string(resp.Mode),
		CampaignID:   req.CampaignID,
		Query:        queryText(req),
		Limit:        req.Limit,
		MinScore:     req.MinScore,
		ResultScores: resultScores(resp.Assets),
		Timings:      resp.Timings,
	}
	detached := context.WithoutCancel(ctx)

	s.metricsWG.Add(1)
	go func() {
		defer s.metricsWG.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("search metrics capture panicked",
					"campaign_id", req.CampaignID.String(),
					"panic", fmt.Sprint(r),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(detached, s.cfg.MetricsTimeout)
		defer cancel()

		if sampled {
			scores, total, err := s.expandedSearch(ctx, req.CampaignID, vector, keywords, req.MinScore)
			if err != nil {
				s.logger.Warn("expanded search failed, recording unsampled",
					"campaign_id", req.CampaignID.String(),
					"error", err,
				)
			} else {
				params.ExpandedResultScores = scores
				params.TotalItemCount = &total
			}
		}

		s.recorder.RecordSearchMetrics(ctx, params)
	}()
}

// expandedSearch reruns the request's channels at telemetry.ExpandedK with
// the same query vector and min score and counts the campaign's assets
func (s *Searcher) expandedSearch(ctx context.Context, campaignID uuid.UUID, vector []float32, keywords string, minScore float64) ([]float64, int, error) {
	ctx, span := s.tracer.Start(ctx, "searcher.expanded")
	defer span.End()

	var timings types.SearchTimings
	vectorHits, textHits, err := s.runChannels(ctx, campaignID, vector, keywords, telemetry.ExpandedK, &timings)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	scores := make([]float64, 0, telemetry.ExpandedK)
	for _, c := range Fuse(vectorHits, textHits, s.cfg.RRFConstant) {
		if c.Score < minScore {
			continue
		}
		// Count only what the caller could have been shown.
		if _, err := Materialize(c.Record); err != nil {
			continue
		}
		scores = append(scores, c.Score)
		if len(scores) == telemetry.ExpandedK {
			break
		}
	}

	total, err := s.retriever.CountAssets(ctx, campaignID)
	if err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}
	return scores, total, nil
}

// queryText is the text recorded for the request
func queryText(req SearchRequest) string {
	if strings.TrimSpace(req.Query) != "" {
		return req.Query
	}
	return req.Keywords
}

func resultScores(results []types.RankedResult) []float64 {
	scores := make([]float64, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	return scores
}
