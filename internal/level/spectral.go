package level

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/dooshek/kittbar/internal/audio"
	"github.com/mjibson/go-dsp/fft"
)

// Spectral averages FFT bin magnitudes into bars and smooths each bar with an
// exponential moving average across blocks.
type Spectral struct {
	bars      int
	scale     float64
	smoothing float64 // weight kept from the previous magnitude, e.g. 0.7

	magnitude []float64
	input     []float64
}

// NewSpectral returns a spectral extractor producing bars levels.
func NewSpectral(bars int, scale, smoothing float64) (*Spectral, error) {
	if bars < 1 {
		return nil, fmt.Errorf("spectral strategy needs at least one bar, got %d", bars)
	}
	if scale <= 0 {
		return nil, fmt.Errorf("spectral scale must be positive, got %v", scale)
	}
	if smoothing < 0 || smoothing >= 1 {
		return nil, fmt.Errorf("spectral smoothing must be in [0,1), got %v", smoothing)
	}
	return &Spectral{
		bars:      bars,
		scale:     scale,
		smoothing: smoothing,
		magnitude: make([]float64, bars),
	}, nil
}

func (s *Spectral) Bands() int { return s.bars }

// Reset forgets the smoothed magnitudes.
func (s *Spectral) Reset() {
	clear(s.magnitude)
}

// Extract runs one FFT over the block. Bins 1..n/2 are split into equal
// contiguous ranges, one per bar; the last bar also takes the remainder.
// An empty block yields zeros and leaves the smoothed state untouched.
func (s *Spectral) Extract(block audio.Block) Vector {
	n := len(block)
	if n < 2 {
		return make(Vector, s.bars)
	}

	if cap(s.input) < n {
		s.input = make([]float64, n)
	}
	x := s.input[:n]
	for i, v := range block {
		x[i] = float64(v) / MaxSampleValue
	}
	coeffs := fft.FFTReal(x)

	half := n / 2
	per := half / s.bars
	if per == 0 {
		per = 1
	}
	norm := float64(half)

	for b := 0; b < s.bars; b++ {
		lo := 1 + b*per
		hi := lo + per
		if b == s.bars-1 {
			hi = half + 1
		}
		if hi > half+1 {
			hi = half + 1
		}

		avg := 0.0
		if lo < hi {
			sum := 0.0
			for k := lo; k < hi; k++ {
				sum += cmplx.Abs(coeffs[k]) / norm
			}
			avg = sum / float64(hi-lo)
		}

		next := s.magnitude[b]*s.smoothing + math.Min(1, avg*s.scale)*(1-s.smoothing)
		s.magnitude[b] = clamp01(next)
	}

	out := make(Vector, s.bars)
	copy(out, s.magnitude)
	return out
}
