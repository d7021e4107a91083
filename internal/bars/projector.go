package bars

import (
	"math"
	"sync/atomic"
	"time"
)

// Quantize maps a level in [0,1] to round(level*maxSegments) clamped to
// [floor, maxSegments].
func Quantize(level float64, maxSegments, floor int) int {
	if math.IsNaN(level) {
		level = 0
	}
	return clamp(int(math.Round(level*float64(maxSegments))), floor, maxSegments)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type Options struct {
	MaxSegments  int
	FloorMin     int
	Centered     bool
	FadeSegments int
}

// Projector turns band segment counts into State snapshots.
type Projector struct {
	layout Layout
	opts   Options
	seq    atomic.Uint64
}

func NewProjector(layout Layout, opts Options) *Projector {
	if opts.FloorMin > opts.MaxSegments {
		opts.FloorMin = opts.MaxSegments
	}
	return &Projector{layout: layout, opts: opts}
}

func (p *Projector) Layout() Layout { return p.layout }

// Floor projects every band at the floor.
func (p *Projector) Floor(at time.Time) *State {
	return p.Project(nil, at)
}

// Project builds a snapshot from per-band segment counts. Bands missing from
// levels are shown at the floor.
func (p *Projector) Project(levels []int, at time.Time) *State {
	top := p.opts.MaxSegments
	s := &State{
		columns:     make([]column, p.layout.Columns()),
		maxSegments: top,
		sequence:    p.seq.Add(1),
		at:          at,
	}

	for c := range s.columns {
		col := &s.columns[c]
		col.alpha = make([]uint8, top)

		band := p.layout.Band(c)
		if band == DarkColumn {
			col.dark = true
			continue
		}

		a := p.opts.FloorMin
		if band < len(levels) {
			a = clamp(levels[band], p.opts.FloorMin, top)
		}
		col.segments = a

		if p.opts.Centered {
			mid := top / 2
			col.start = mid - a/2
			col.end = mid + a/2 + a%2
		} else {
			col.start, col.end = 0, a
		}
		p.fill(col)
	}
	return s
}

// fill assigns the opacity ramp: the top F lit segments fade out towards the
// top and the bottom F fade in from below.
func (p *Projector) fill(col *column) {
	f := p.opts.FadeSegments
	for seg := col.start; seg < col.end; seg++ {
		alpha := 255.0
		switch {
		case f > 0 && seg >= col.end-f:
			alpha = 255 * float64(col.end-seg-1) / float64(f)
		case f > 0 && seg < col.start+f:
			alpha = 255 * (1 - float64(col.start+f-1-seg)/float64(f))
		}
		col.alpha[seg] = uint8(alpha)
	}
}
