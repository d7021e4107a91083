package level

import (
	"fmt"
	"math"

	"github.com/dooshek/kittbar/internal/audio"
)

// BandedRMS splits a block into equal contiguous sub-ranges and reports the
// RMS of each, divided by a sensitivity divisor.
type BandedRMS struct {
	bands   int
	divisor float64
}

// NewBandedRMS returns an extractor with the given number of bands (1 or 3).
func NewBandedRMS(bands int, divisor float64) (*BandedRMS, error) {
	if bands != 1 && bands != 3 {
		return nil, fmt.Errorf("rms strategy supports 1 or 3 bands, got %d", bands)
	}
	if divisor <= 0 {
		return nil, fmt.Errorf("sensitivity divisor must be positive, got %v", divisor)
	}
	return &BandedRMS{bands: bands, divisor: divisor}, nil
}

func (r *BandedRMS) Bands() int { return r.bands }

// Reset is a no-op; BandedRMS keeps no state between blocks.
func (r *BandedRMS) Reset() {}

// Extract computes min(1, rms/divisor) per band. Samples left over by the
// integer division go to the last band.
func (r *BandedRMS) Extract(block audio.Block) Vector {
	out := make(Vector, r.bands)
	n := len(block)
	if n == 0 {
		return out
	}

	size := n / r.bands
	for b := 0; b < r.bands; b++ {
		start := b * size
		end := start + size
		if b == r.bands-1 {
			end = n
		}
		if end <= start {
			continue
		}
		out[b] = clamp01(RMS(block[start:end]) / r.divisor)
	}
	return out
}

// RMS returns sqrt(mean(sample²)) in raw 16-bit units.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
