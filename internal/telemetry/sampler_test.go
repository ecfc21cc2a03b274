package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler(t *testing.T) {
	t.Run("zero never samples", func(t *testing.T) {
		s := NewSamplerWithSource(0, func() float64 { return 0 })
		for i := 0; i < 100; i++ {
			assert.False(t, s.ShouldSample())
		}
	})

	t.Run("one always samples", func(t *testing.T) {
		s := NewSamplerWithSource(1, func() float64 { return 0.999 })
		for i := 0; i < 100; i++ {
			assert.True(t, s.ShouldSample())
		}
	})

	t.Run("compares against source", func(t *testing.T) {
		values := []float64{0.05, 0.1, 0.5, 0.09}
		i := 0
		s := NewSamplerWithSource(0.1, func() float64 {
			v := values[i]
			i++
			return v
		})
		assert.True(t, s.ShouldSample())
		assert.False(t, s.ShouldSample())
		assert.False(t, s.ShouldSample())
		assert.True(t, s.ShouldSample())
	})

	t.Run("clamps rate", func(t *testing.T) {
		assert.Equal(t, 0.0, NewSampler(-0.5).Rate())
		assert.Equal(t, 1.0, NewSampler(3).Rate())
		assert.Equal(t, 0.0, NewSampler(math.NaN()).Rate())
		assert.Equal(t, 0.25, NewSampler(0.25).Rate())
	})

	t.Run("default source stays near rate", func(t *testing.T) {
		s := NewSampler(0.5)
		hits := 0
		for i := 0; i < 10000; i++ {
			if s.ShouldSample() {
				hits++
			}
		}
		assert.InDelta(t, 5000, hits, 500)
	})

	t.Run("nil sampler never samples", func(t *testing.T) {
		var s *Sampler
		assert.False(t, s.ShouldSample())
	})
}
