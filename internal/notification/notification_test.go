package notification

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/capture"
)

type recordingPlatform struct {
	titles, messages []string
}

func (r *recordingPlatform) send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func TestCaptureNotifications(t *testing.T) {
	p := &recordingPlatform{}
	n := &baseNotifier{platform: p}

	if err := n.NotifyCaptureStarted(); err != nil {
		t.Fatal(err)
	}
	if err := n.NotifyCaptureEnded(capture.Event{Kind: capture.EventEnded, Stats: capture.RunStats{Duration: 61 * time.Second}}); err != nil {
		t.Fatal(err)
	}
	lost := capture.Event{Kind: capture.EventEnded, Err: errors.New("capture device lost"), Stats: capture.RunStats{Duration: 3 * time.Second}}
	if err := n.NotifyCaptureEnded(lost); err != nil {
		t.Fatal(err)
	}

	if len(p.messages) != 3 || p.titles[0] != appTitle {
		t.Fatalf("sent %v / %v", p.titles, p.messages)
	}
	if p.messages[1] != "Stopped after 1m1s" {
		t.Errorf("normal end: %q", p.messages[1])
	}
	if !strings.HasPrefix(p.messages[2], "Microphone lost after 3s") {
		t.Errorf("device lost: %q", p.messages[2])
	}
}

func TestEscapeAppleScript(t *testing.T) {
	if got := escapeAppleScript(`say "hi" \ bye`); got != `say \"hi\" \\ bye` {
		t.Fatalf("escaped %q", got)
	}
}
