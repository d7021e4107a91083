package dbus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/bars"
	"github.com/dooshek/kittbar/internal/capture"
)

type fakeController struct {
	running  bool
	startErr error
	snap     *bars.State
}

func (f *fakeController) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop()                { f.running = false }
func (f *fakeController) IsRunning() bool       { return f.running }
func (f *fakeController) Snapshot() *bars.State { return f.snap }

func (f *fakeController) Toggle(ctx context.Context) error {
	if f.running {
		f.Stop()
		return nil
	}
	return f.Start(ctx)
}

type fakeStats string

func (f fakeStats) GetStatsJSON() (string, error) { return string(f), nil }

func newController(t *testing.T) *fakeController {
	t.Helper()
	l, err := bars.Alternating(7, 3)
	if err != nil {
		t.Fatal(err)
	}
	p := bars.NewProjector(l, bars.Options{MaxSegments: 20, FloorMin: 2})
	return &fakeController{snap: p.Project([]int{3, 7, 5}, time.Time{})}
}

func TestMethodsDriveController(t *testing.T) {
	ctl := newController(t)
	s := NewServer(ctl, fakeStats(`{"sessions":1}`))

	if err := s.StartCapture(); err != nil {
		t.Fatal(err)
	}
	if running, _ := s.GetStatus(); !running {
		t.Fatal("not running after Start")
	}
	if err := s.Toggle(); err != nil {
		t.Fatal(err)
	}
	if running, _ := s.GetStatus(); running {
		t.Fatal("still running after Toggle")
	}
	if err := s.StopCapture(); err != nil {
		t.Fatal(err)
	}

	segments, derr := s.GetSnapshot()
	if derr != nil {
		t.Fatal(derr)
	}
	want := []int32{0, 3, 0, 7, 0, 5, 0}
	for i := range want {
		if segments[i] != want[i] {
			t.Fatalf("segments %v, want %v", segments, want)
		}
	}

	js, derr := s.GetSnapshotJSON()
	if derr != nil || !strings.Contains(js, `"max_segments":20`) {
		t.Fatalf("snapshot json %q, %v", js, derr)
	}
	stats, derr := s.GetStats()
	if derr != nil || stats != `{"sessions":1}` {
		t.Fatalf("stats %q, %v", stats, derr)
	}
}

func TestStartErrorIsReturned(t *testing.T) {
	ctl := newController(t)
	ctl.startErr = errors.New("capture device unavailable")
	s := NewServer(ctl, nil)

	derr := s.StartCapture()
	if derr == nil {
		t.Fatal("expected a D-Bus error")
	}
	if stats, _ := s.GetStats(); stats != "{}" {
		t.Fatalf("stats without a source = %q", stats)
	}
}

func TestHandleEventWithoutConnection(t *testing.T) {
	s := NewServer(newController(t), nil)
	s.HandleEvent(capture.Event{Kind: capture.EventStarted})
	s.HandleEvent(capture.Event{Kind: capture.EventEnded, Err: errors.New("lost")})
}
