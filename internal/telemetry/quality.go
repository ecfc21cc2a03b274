package telemetry

import (
	"math"
	"sort"

	"github.com/dshills/campaignsearch/internal/storage"
)

// ExpandedK is the result depth used as a stand-in for "all relevant items"
const ExpandedK = 200

// Quality holds the proxy retrieval metrics of a sampled search
type Quality struct {
	PrecisionAtK   float64
	RecallAtK      float64
	F1AtK          float64
	PrecisionAt200 float64
	RecallAt200    float64
	F1At200        float64
	CoverageRatio  float64
}

// ComputeQuality derives proxy metrics from the number of results returned
// at the requested k, the number returned by the expanded search, and the
// campaign's total asset count
func ComputeQuality(resultsAtK, k, resultsAt200, total int) Quality {
	var q Quality
	q.PrecisionAtK = ratio(resultsAtK, k)
	q.RecallAtK = ratio(resultsAtK, resultsAt200)
	q.F1AtK = f1(q.PrecisionAtK, q.RecallAtK)
	q.PrecisionAt200 = ratio(resultsAt200, ExpandedK)
	q.RecallAt200 = ratio(resultsAt200, total)
	q.F1At200 = f1(q.PrecisionAt200, q.RecallAt200)
	q.CoverageRatio = ratio(resultsAtK, total)
	return q
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// ComputeDistribution summarizes scores with the population standard
// deviation. An empty input yields all zeros.
func ComputeDistribution(scores []float64) storage.ScoreDistribution {
	if len(scores) == 0 {
		return storage.ScoreDistribution{}
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(len(sorted))

	var variance float64
	for _, s := range sorted {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(sorted))

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return storage.ScoreDistribution{
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		StdDev: math.Sqrt(variance),
	}
}
