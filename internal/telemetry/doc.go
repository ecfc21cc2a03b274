// Package telemetry records per-search metrics and estimates retrieval
// quality without labeled data.
//
// Every search produces one storage.SearchMetric row with basic counts and
// timings. A configurable fraction of searches is sampled: for those the
// searcher re-runs the query at k=200 and the row additionally carries
// proxy precision, recall, F1 and coverage figures, a score distribution
// and the query text itself. Unsampled rows store only the query length.
//
// Recording never fails the caller. Persistence errors and panics are
// logged at warn level and counted in
// campaignsearch_search_metrics_failures_total.
package telemetry
