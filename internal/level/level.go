// Package level turns sample blocks into normalized per-band intensities.
package level

import (
	"fmt"
	"math"

	"github.com/dooshek/kittbar/internal/audio"
	"github.com/dooshek/kittbar/internal/types"
)

// MaxSampleValue is the magnitude of the most negative 16-bit sample.
const MaxSampleValue = 32768.0

// Vector holds one level in [0,1] per band.
type Vector []float64

// Extractor converts a sample block into a Vector of Bands() levels.
// Implementations may keep state across calls and are not safe for
// concurrent use; the capture loop owns its extractor.
type Extractor interface {
	Extract(block audio.Block) Vector
	Bands() int
	Reset()
}

// New builds the extractor selected by the level configuration.
func New(lc types.LevelConfig, cc types.CaptureConfig) (Extractor, error) {
	switch lc.Strategy {
	case types.StrategyRMS, "":
		r, err := NewBandedRMS(lc.Bands, lc.SensitivityDivisor)
		if err != nil {
			return nil, err
		}
		return r, nil
	case types.StrategySpectral:
		s, err := NewSpectral(cc.ColumnCount/2+1, lc.SpectralScale, lc.SpectralSmoothing)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown level strategy %q", lc.Strategy)
	}
}

// clamp01 maps NaN and negatives to 0 and caps at 1.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
