package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/capture"
)

func TestAddSessionPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.json")
	sm := NewStatsManager(path)

	sm.AddSession(capture.RunStats{Duration: 2 * time.Second, Cycles: 40, Missed: 3, DecayTicks: 1}, false)
	sm.AddSession(capture.RunStats{Duration: 500 * time.Millisecond, Cycles: 10, TransientErrors: 2}, true)

	reloaded := NewStatsManager(path).GetStats()
	if reloaded.Sessions != 2 || reloaded.Cycles != 50 || reloaded.Missed != 3 ||
		reloaded.TransientErrors != 2 || reloaded.DeviceLosses != 1 {
		t.Fatalf("reloaded %+v", reloaded)
	}
	if reloaded.TotalSeconds != 2.5 {
		t.Fatalf("total seconds %v", reloaded.TotalSeconds)
	}
	if reloaded.LastSession == nil || reloaded.LastSession.Cycles != 10 {
		t.Fatalf("last session %+v", reloaded.LastSession)
	}
}

func TestGetStatsIsACopy(t *testing.T) {
	sm := NewStatsManager(filepath.Join(t.TempDir(), "stats.json"))
	sm.AddSession(capture.RunStats{Cycles: 1}, false)

	s := sm.GetStats()
	s.LastSession.Cycles = 99
	if sm.GetStats().LastSession.Cycles != 1 {
		t.Fatal("GetStats exposed internal state")
	}
}

func TestResetAndJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	sm := NewStatsManager(path)
	sm.AddSession(capture.RunStats{Cycles: 5}, false)

	js, err := sm.GetStatsJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js, `"cycles":5`) {
		t.Fatalf("json %s", js)
	}

	if err := sm.Reset(); err != nil {
		t.Fatal(err)
	}
	if got := NewStatsManager(path).GetStats(); got.Sessions != 0 || got.LastSession != nil {
		t.Fatalf("after reset %+v", got)
	}
}

func TestCorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := NewStatsManager(path).GetStats(); got.Sessions != 0 {
		t.Fatalf("corrupt file produced %+v", got)
	}
}
