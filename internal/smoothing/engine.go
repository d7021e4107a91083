// Package smoothing holds the per-band segment counts between capture cycles
// and decays them towards the floor while no audio arrives.
package smoothing

import (
	"time"

	"github.com/dooshek/kittbar/internal/bars"
	"github.com/dooshek/kittbar/internal/level"
)

// SymmetricBands is the band count for which the center band is kept above
// its neighbours.
const SymmetricBands = 3

type Config struct {
	MaxSegments    int
	FloorMin       int
	SymmetryOffset int
	DecayTimeout   time.Duration
}

// State is the SmoothedState: discrete segment counts per band and the time
// of the last successful update.
type State struct {
	Levels     []int
	LastUpdate time.Time
}

// Engine is owned by a single capture goroutine and is not safe for
// concurrent use.
type Engine struct {
	cfg   Config
	state State
}

func New(bands int, cfg Config) *Engine {
	if cfg.FloorMin > cfg.MaxSegments {
		cfg.FloorMin = cfg.MaxSegments
	}
	e := &Engine{
		cfg:   cfg,
		state: State{Levels: make([]int, bands)},
	}
	e.Reset()
	return e
}

// Update quantizes a fresh level vector and records now as the last update.
// Bands missing from v are treated as silent.
func (e *Engine) Update(v level.Vector, now time.Time) {
	for i := range e.state.Levels {
		l := 0.0
		if i < len(v) {
			l = v[i]
		}
		e.state.Levels[i] = bars.Quantize(l, e.cfg.MaxSegments, e.cfg.FloorMin)
	}
	e.applySymmetry()
	e.state.LastUpdate = now
}

// Miss records a cycle without data. Once nothing has arrived for longer than
// DecayTimeout, every band above the floor drops by exactly one segment per
// call. It reports whether a decay step was taken.
func (e *Engine) Miss(now time.Time) bool {
	if !e.stale(now) {
		return false
	}
	for i, l := range e.state.Levels {
		if l > e.cfg.FloorMin {
			e.state.Levels[i] = l - 1
		}
	}
	e.applySymmetry()
	return true
}

func (e *Engine) stale(now time.Time) bool {
	last := e.state.LastUpdate
	return last.IsZero() || now.Sub(last) > e.cfg.DecayTimeout
}

// applySymmetry keeps the center of a three band display at least
// SymmetryOffset segments above the louder side.
func (e *Engine) applySymmetry() {
	off := e.cfg.SymmetryOffset
	if len(e.state.Levels) != SymmetricBands || off <= 0 {
		return
	}
	l := e.state.Levels
	sideCap := e.cfg.MaxSegments - off
	if sideCap < e.cfg.FloorMin {
		sideCap = e.cfg.FloorMin
	}
	l[0] = min(l[0], sideCap)
	l[2] = min(l[2], sideCap)
	l[1] = min(max(l[1], max(l[0], l[2])+off), e.cfg.MaxSegments)
}

// Levels returns a copy of the current segment counts.
func (e *Engine) Levels() []int {
	out := make([]int, len(e.state.Levels))
	copy(out, e.state.Levels)
	return out
}

// Snapshot returns a copy of the smoothed state.
func (e *Engine) Snapshot() State {
	return State{Levels: e.Levels(), LastUpdate: e.state.LastUpdate}
}

// Reset puts every band back on the floor and forgets the last update.
func (e *Engine) Reset() {
	for i := range e.state.Levels {
		e.state.Levels[i] = e.cfg.FloorMin
	}
	e.state.LastUpdate = time.Time{}
	e.applySymmetry()
}
