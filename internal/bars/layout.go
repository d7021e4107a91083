package bars

import (
	"fmt"

	"github.com/dooshek/kittbar/internal/types"
)

// DarkColumn marks a decorative spacer column in a Layout.
const DarkColumn = -1

// Layout maps every display column to the band that drives it, or DarkColumn.
// It is fixed at configuration time.
type Layout struct {
	columns []int
	bands   int
}

// Alternating interleaves dark and active columns, starting dark: for seven
// columns the active ones are 1, 3 and 5. bands must be 1 (every active column
// shows the same band) or equal to the number of active columns.
func Alternating(columns, bands int) (Layout, error) {
	active := columns / 2
	if active == 0 {
		return Layout{}, fmt.Errorf("alternating layout needs at least 2 columns, got %d", columns)
	}
	if bands != 1 && bands != active {
		return Layout{}, fmt.Errorf("%d bands cannot fill %d active columns", bands, active)
	}

	l := Layout{columns: make([]int, columns), bands: bands}
	n := 0
	for c := range l.columns {
		if c%2 == 0 {
			l.columns[c] = DarkColumn
			continue
		}
		if bands > 1 {
			l.columns[c] = n
			n++
		}
	}
	return l, nil
}

// Mirrored spreads columns/2+1 bands outwards from the center column: band 0
// sits in the middle and band i drives both center-i and center+i.
func Mirrored(columns int) (Layout, error) {
	if columns < 1 || columns%2 == 0 {
		return Layout{}, fmt.Errorf("mirrored layout needs an odd column count, got %d", columns)
	}
	center := columns / 2
	l := Layout{columns: make([]int, columns), bands: center + 1}
	for c := range l.columns {
		d := c - center
		if d < 0 {
			d = -d
		}
		l.columns[c] = d
	}
	return l, nil
}

// NewLayout builds the layout selected by cfg.
func NewLayout(cfg *types.Config) (Layout, error) {
	switch cfg.GetLayout() {
	case types.LayoutMirrored:
		return Mirrored(cfg.Capture.ColumnCount)
	case types.LayoutAlternating:
		return Alternating(cfg.Capture.ColumnCount, cfg.BandCount())
	default:
		return Layout{}, fmt.Errorf("unknown layout %q", cfg.GetLayout())
	}
}

func (l Layout) Columns() int { return len(l.columns) }
func (l Layout) Bands() int   { return l.bands }

// Band returns the band shown in column c, or DarkColumn.
func (l Layout) Band(c int) int { return l.columns[c] }
