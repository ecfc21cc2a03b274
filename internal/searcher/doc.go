// Package searcher implements hybrid search over campaign assets, combining
// vector similarity and BM25 keyword matching with Reciprocal Rank Fusion.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store,
//	    searcher.WithEmbedder(queryEmbedder),
//	    searcher.WithRecorder(recorder, telemetry.NewSampler(0.1)),
//	)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    CampaignID: campaignID,
//	    Query:      "who runs the smuggling ring",
//	    Keywords:   "smuggler docks",
//	    Limit:      10,
//	})
//
// # Channels
//
// Query (or a caller-supplied QueryVector) feeds the vector channel and
// Keywords feed the keyword channel. Only channels with input run; the
// response Mode says which did:
//
//   - hybrid: both channels, fused with RRF
//   - vector: vector similarity only
//   - keyword: BM25 full-text only, no embedding required
//
// Each channel is asked for clamp(limit*3, 30, 200) candidates. Either
// channel failing fails the search.
//
// # Reciprocal Rank Fusion
//
//	score(item) = sum over channels of 1 / (k + rank + 1)    rank 0 = best
//
// with k = 60. Fused scores are divided by the best score of the query, so
// the top result always scores 1.0 and every score lies in (0, 1].
//
// # Pipeline
//
// fusion, then materialization of stored rows (malformed rows are dropped
// and counted in SearchResponse.Dropped), then the MinScore filter, then
// truncation to Limit.
//
// # Metrics
//
// When a recorder is configured every successful search is recorded on a
// background goroutine that is detached from the request context. Sampled
// requests additionally rerun their channels at depth 200 to estimate
// precision and recall. Call WaitForMetrics before shutdown.
package searcher
