// Package bars projects per-band segment counts onto the fixed column layout
// and produces the immutable snapshots renderers consume.
package bars

import (
	"encoding/json"
	"time"
)

type column struct {
	segments   int
	dark       bool
	start, end int
	alpha      []uint8
}

// State is one published VisualizationState. It is never modified after
// Project returns it, so it can be shared between goroutines freely.
type State struct {
	columns     []column
	maxSegments int
	sequence    uint64
	at          time.Time
}

// Len is the number of columns.
func (s *State) Len() int { return len(s.columns) }

// Segments is the active segment count of column i. Dark columns report 0.
func (s *State) Segments(i int) int { return s.columns[i].segments }

func (s *State) Dark(i int) bool { return s.columns[i].dark }

// Run returns the lit segment range [start, end) of column i, with segment 0
// at the bottom.
func (s *State) Run(i int) (start, end int) {
	return s.columns[i].start, s.columns[i].end
}

// Lit reports whether segment seg of column i is inside the lit run.
func (s *State) Lit(i, seg int) bool {
	c := s.columns[i]
	return seg >= c.start && seg < c.end
}

// Alpha is the opacity (0-255) of segment seg in column i. Unlit segments are 0.
func (s *State) Alpha(i, seg int) uint8 {
	if seg < 0 || seg >= s.maxSegments {
		return 0
	}
	return s.columns[i].alpha[seg]
}

func (s *State) MaxSegments() int { return s.maxSegments }

// Sequence increases by one for every projected snapshot.
func (s *State) Sequence() uint64 { return s.sequence }

func (s *State) Time() time.Time { return s.at }

// Values returns a copy of the per-column segment counts.
func (s *State) Values() []int {
	out := make([]int, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.segments
	}
	return out
}

type columnJSON struct {
	Segments int   `json:"segments"`
	Dark     bool  `json:"dark"`
	Start    int   `json:"start"`
	End      int   `json:"end"`
	Alpha    []int `json:"alpha"`
}

type stateJSON struct {
	Sequence    uint64       `json:"sequence"`
	Time        time.Time    `json:"time"`
	MaxSegments int          `json:"max_segments"`
	Columns     []columnJSON `json:"columns"`
}

func (s *State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		Sequence:    s.sequence,
		Time:        s.at,
		MaxSegments: s.maxSegments,
		Columns:     make([]columnJSON, len(s.columns)),
	}
	for i, c := range s.columns {
		alpha := make([]int, len(c.alpha))
		for j, a := range c.alpha {
			alpha[j] = int(a)
		}
		out.Columns[i] = columnJSON{
			Segments: c.segments,
			Dark:     c.dark,
			Start:    c.start,
			End:      c.end,
			Alpha:    alpha,
		}
	}
	return json.Marshal(out)
}
