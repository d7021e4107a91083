package smoothing

import (
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/level"
)

var cfg = Config{
	MaxSegments:    20,
	FloorMin:       2,
	SymmetryOffset: 2,
	DecayTimeout:   500 * time.Millisecond,
}

const tick = 50 * time.Millisecond

func equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUpdateQuantizes(t *testing.T) {
	e := New(1, cfg)
	now := time.Unix(100, 0)
	e.Update(level.Vector{1}, now)
	if got := e.Levels(); got[0] != 20 {
		t.Fatalf("full level = %v", got)
	}
	e.Update(level.Vector{0.5}, now)
	if got := e.Levels(); got[0] != 10 {
		t.Fatalf("half level = %v", got)
	}
	if !e.Snapshot().LastUpdate.Equal(now) {
		t.Fatal("LastUpdate not recorded")
	}
}

func TestMissHoldsUntilTimeout(t *testing.T) {
	e := New(1, cfg)
	t0 := time.Unix(100, 0)
	e.Update(level.Vector{1}, t0)

	for now := t0.Add(tick); now.Sub(t0) <= cfg.DecayTimeout; now = now.Add(tick) {
		if e.Miss(now) {
			t.Fatalf("decayed %v after the last update", now.Sub(t0))
		}
	}
	if got := e.Levels()[0]; got != 20 {
		t.Fatalf("level moved before the timeout: %d", got)
	}
}

func TestDecayMonotonic(t *testing.T) {
	e := New(1, cfg)
	t0 := time.Unix(100, 0)
	e.Update(level.Vector{1}, t0)

	now := t0.Add(cfg.DecayTimeout)
	prev := 20
	for i := 0; i < 40; i++ {
		now = now.Add(tick)
		if !e.Miss(now) {
			t.Fatalf("tick %d: no decay past the timeout", i)
		}
		got := e.Levels()[0]
		want := max(prev-1, cfg.FloorMin)
		if got != want {
			t.Fatalf("tick %d: level %d, want %d", i, got, want)
		}
		prev = got
	}
	if prev != cfg.FloorMin {
		t.Fatalf("settled at %d, want floor", prev)
	}
}

func TestMissWithoutAnyUpdateDecays(t *testing.T) {
	e := New(3, cfg)
	if !e.Miss(time.Unix(1, 0)) {
		t.Fatal("a never-updated engine should be stale")
	}
}

func TestSilenceIsIdempotent(t *testing.T) {
	// Single band: silence settles exactly at the floor.
	e := New(1, cfg)
	now := time.Unix(100, 0)
	e.Update(level.Vector{0.8}, now)
	for i := 0; i < 10; i++ {
		now = now.Add(tick)
		e.Update(level.Vector{0}, now)
		if got := e.Levels()[0]; got != cfg.FloorMin {
			t.Fatalf("cycle %d: silent level %d", i, got)
		}
	}

	// Three bands: the center sits SymmetryOffset above the floor.
	e = New(3, cfg)
	e.Update(level.Vector{0.9, 0.2, 0.4}, now)
	for i := 0; i < 10; i++ {
		now = now.Add(tick)
		e.Update(level.Vector{0, 0, 0}, now)
		if got := e.Levels(); !equal(got, []int{2, 4, 2}) {
			t.Fatalf("cycle %d: silent levels %v", i, got)
		}
	}
}

func TestSymmetryPullsCenterUp(t *testing.T) {
	e := New(3, cfg)
	now := time.Unix(100, 0)

	tests := []struct {
		in   level.Vector
		want []int
	}{
		{level.Vector{0.5, 0.1, 0.3}, []int{10, 12, 6}},
		{level.Vector{0.2, 0.9, 0.2}, []int{4, 18, 4}},
		{level.Vector{1, 1, 1}, []int{18, 20, 18}},
		{level.Vector{1, 0, 0.95}, []int{18, 20, 18}},
	}
	for _, tt := range tests {
		e.Update(tt.in, now)
		if got := e.Levels(); !equal(got, tt.want) {
			t.Errorf("Update(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSymmetryHoldsDuringDecay(t *testing.T) {
	e := New(3, cfg)
	t0 := time.Unix(100, 0)
	e.Update(level.Vector{1, 0.1, 0.5}, t0)

	now := t0.Add(cfg.DecayTimeout)
	for i := 0; i < 30; i++ {
		now = now.Add(tick)
		before := e.Levels()
		e.Miss(now)
		l := e.Levels()
		if l[1] < max(l[0], l[2])+cfg.SymmetryOffset {
			t.Fatalf("tick %d: symmetry broken %v", i, l)
		}
		for b := range l {
			if l[b] > before[b] || before[b]-l[b] > 1 {
				t.Fatalf("tick %d: band %d went %d -> %d", i, b, before[b], l[b])
			}
		}
	}
	if got := e.Levels(); !equal(got, []int{2, 4, 2}) {
		t.Fatalf("settled at %v", got)
	}
}

func TestResetAndShortVectors(t *testing.T) {
	e := New(3, cfg)
	now := time.Unix(100, 0)
	e.Update(level.Vector{0.5}, now)
	if got := e.Levels(); !equal(got, []int{10, 12, 2}) {
		t.Fatalf("short vector = %v", got)
	}
	e.Reset()
	if got := e.Levels(); !equal(got, []int{2, 4, 2}) {
		t.Fatalf("after reset %v", got)
	}
	if !e.Snapshot().LastUpdate.IsZero() {
		t.Fatal("reset kept LastUpdate")
	}

	got := e.Levels()
	got[0] = 99
	if e.Levels()[0] == 99 {
		t.Fatal("Levels exposes internal state")
	}
}

func TestNoSymmetryWithoutOffset(t *testing.T) {
	c := cfg
	c.SymmetryOffset = 0
	e := New(3, c)
	e.Update(level.Vector{1, 0, 1}, time.Unix(1, 0))
	if got := e.Levels(); !equal(got, []int{20, 2, 20}) {
		t.Fatalf("levels %v", got)
	}
}
