package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeQuality(t *testing.T) {
	t.Run("two results at limit ten", func(t *testing.T) {
		q := ComputeQuality(2, 10, 2, 40)
		assert.InDelta(t, 0.2, q.PrecisionAtK, 1e-9)
		assert.InDelta(t, 1.0, q.RecallAtK, 1e-9)
		assert.InDelta(t, 2*0.2*1.0/1.2, q.F1AtK, 1e-9)
		assert.InDelta(t, 0.01, q.PrecisionAt200, 1e-9)
		assert.InDelta(t, 0.05, q.RecallAt200, 1e-9)
		assert.InDelta(t, 0.05, q.CoverageRatio, 1e-9)
	})

	t.Run("expanded search finds more", func(t *testing.T) {
		q := ComputeQuality(10, 10, 50, 100)
		assert.InDelta(t, 1.0, q.PrecisionAtK, 1e-9)
		assert.InDelta(t, 0.2, q.RecallAtK, 1e-9)
		assert.InDelta(t, 0.25, q.PrecisionAt200, 1e-9)
		assert.InDelta(t, 0.5, q.RecallAt200, 1e-9)
		assert.InDelta(t, 2*0.25*0.5/0.75, q.F1At200, 1e-9)
		assert.InDelta(t, 0.1, q.CoverageRatio, 1e-9)
	})

	t.Run("nothing found", func(t *testing.T) {
		q := ComputeQuality(0, 10, 0, 0)
		assert.Equal(t, Quality{}, q)
	})

	t.Run("empty campaign", func(t *testing.T) {
		q := ComputeQuality(0, 10, 0, 0)
		assert.Zero(t, q.RecallAt200)
		assert.Zero(t, q.CoverageRatio)
	})
}

func TestComputeDistribution(t *testing.T) {
	d := ComputeDistribution([]float64{0.95, 0.88})
	assert.InDelta(t, 0.915, d.Mean, 1e-9)
	assert.InDelta(t, 0.915, d.Median, 1e-9)
	assert.InDelta(t, 0.88, d.Min, 1e-9)
	assert.InDelta(t, 0.95, d.Max, 1e-9)
	assert.InDelta(t, 0.035, d.StdDev, 1e-9)

	odd := ComputeDistribution([]float64{3, 1, 2})
	assert.Equal(t, 2.0, odd.Median)
	assert.InDelta(t, 0.816496580927726, odd.StdDev, 1e-9)

	assert.Zero(t, ComputeDistribution(nil))
}

func TestComputeDistribution_DoesNotReorderInput(t *testing.T) {
	scores := []float64{0.3, 0.9, 0.1}
	_ = ComputeDistribution(scores)
	assert.Equal(t, []float64{0.3, 0.9, 0.1}, scores)
}
