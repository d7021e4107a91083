package termview

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/bars"
	"github.com/fatih/color"
)

func projector(t *testing.T) *bars.Projector {
	t.Helper()
	l, err := bars.Alternating(7, 3)
	if err != nil {
		t.Fatal(err)
	}
	return bars.NewProjector(l, bars.Options{MaxSegments: 8, FloorMin: 2, Centered: true, FadeSegments: 2})
}

func TestRenderShape(t *testing.T) {
	color.NoColor = true
	p := projector(t)
	frame := New(&bytes.Buffer{}, 30).Render(p.Project([]int{2, 8, 4}, time.Time{}))

	lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("%d rows", len(lines))
	}
	// Top row: only the full center column reaches it, and its top segment
	// is fully faded.
	if !strings.Contains(lines[0], "░░░") || strings.Contains(lines[0], "███") {
		t.Fatalf("top row %q", lines[0])
	}
	// Row for segment 4 (lines[3]) is inside all three runs.
	if strings.Count(lines[3], " · ") != 0 {
		t.Fatalf("middle row %q", lines[3])
	}
	// Dark columns are blank on every row.
	for i, l := range lines {
		if !strings.HasPrefix(l, "   ") {
			t.Fatalf("row %d does not start with a dark column: %q", i, l)
		}
	}
}

type fakeSource struct {
	mu   sync.Mutex
	snap *bars.State
	ch   chan struct{}
}

func (f *fakeSource) Snapshot() *bars.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSource) Subscribe() (<-chan struct{}, func()) { return f.ch, func() {} }

func (f *fakeSource) publish(s *bars.State) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
	select {
	case f.ch <- struct{}{}:
	default:
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestRunDrawsPublishedFrames(t *testing.T) {
	color.NoColor = true
	p := projector(t)
	src := &fakeSource{snap: p.Floor(time.Time{}), ch: make(chan struct{}, 1)}
	out := &syncBuffer{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(out, 200).Run(ctx, src)
		close(done)
	}()

	src.publish(p.Project([]int{8, 8, 8}, time.Time{}))
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "███") {
		if time.Now().After(deadline) {
			t.Fatal("frame never drawn")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !strings.HasSuffix(out.String(), showCursor+"\n") {
		t.Fatal("cursor not restored")
	}
}
