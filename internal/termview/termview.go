// Package termview draws snapshots as a column of coloured cells in a terminal.
package termview

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dooshek/kittbar/internal/bars"
	"github.com/fatih/color"
)

const (
	clearScreen = "\033[H\033[2J"
	cursorHome  = "\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// Source is the read side of a capture session.
type Source interface {
	Snapshot() *bars.State
	Subscribe() (<-chan struct{}, func())
}

// View renders snapshots at its own frame rate, skipping frames when
// nothing new was published.
type View struct {
	out      io.Writer
	interval time.Duration

	bright, mid, dim *color.Color
	off              *color.Color
}

func New(out io.Writer, fps int) *View {
	if fps <= 0 {
		fps = 30
	}
	return &View{
		out:      out,
		interval: time.Second / time.Duration(fps),
		bright:   color.New(color.FgHiRed, color.Bold),
		mid:      color.New(color.FgRed),
		dim:      color.New(color.FgRed, color.Faint),
		off:      color.New(color.FgHiBlack),
	}
}

// Run draws until ctx is done.
func (v *View) Run(ctx context.Context, src Source) error {
	updates, unsubscribe := src.Subscribe()
	defer unsubscribe()

	fmt.Fprint(v.out, hideCursor+clearScreen)
	defer fmt.Fprint(v.out, showCursor+"\n")

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	var drawn uint64
	dirty := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-updates:
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			s := src.Snapshot()
			if s.Sequence() == drawn {
				dirty = false
				continue
			}
			fmt.Fprint(v.out, cursorHome+v.Render(s))
			drawn = s.Sequence()
			dirty = false
		}
	}
}

// Render returns one frame, top segment first.
func (v *View) Render(s *bars.State) string {
	var b strings.Builder
	for seg := s.MaxSegments() - 1; seg >= 0; seg-- {
		for c := 0; c < s.Len(); c++ {
			b.WriteString(v.cell(s, c, seg))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (v *View) cell(s *bars.State, c, seg int) string {
	switch {
	case s.Dark(c):
		return "   "
	case !s.Lit(c, seg):
		return v.off.Sprint(" · ")
	}
	switch a := s.Alpha(c, seg); {
	case a >= 191:
		return v.bright.Sprint("███")
	case a >= 127:
		return v.mid.Sprint("▓▓▓")
	case a > 0:
		return v.dim.Sprint("▒▒▒")
	default:
		return v.dim.Sprint("░░░")
	}
}
