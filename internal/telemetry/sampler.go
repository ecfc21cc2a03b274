package telemetry

import "math/rand/v2"

// Sampler decides which searches receive the expanded quality measurement
type Sampler struct {
	rate   float64
	random func() float64
}

// NewSampler creates a sampler electing roughly rate of all requests.
// Rates outside [0, 1] are clamped.
func NewSampler(rate float64) *Sampler {
	return NewSamplerWithSource(rate, rand.Float64)
}

// NewSamplerWithSource is NewSampler with an injected source of values in [0, 1)
func NewSamplerWithSource(rate float64, random func() float64) *Sampler {
	switch {
	case rate < 0 || rate != rate:
		rate = 0
	case rate > 1:
		rate = 1
	}
	return &Sampler{rate: rate, random: random}
}

// ShouldSample reports whether the current request is sampled
func (s *Sampler) ShouldSample() bool {
	if s == nil || s.rate <= 0 {
		return false
	}
	if s.rate >= 1 {
		return true
	}
	return s.random() < s.rate
}

// Rate returns the effective sample rate
func (s *Sampler) Rate() float64 {
	if s == nil {
		return 0
	}
	return s.rate
}
