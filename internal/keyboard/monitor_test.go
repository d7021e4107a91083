package keyboard

import (
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/types"
)

func TestHandleKeyCombination(t *testing.T) {
	m, err := NewMonitor(types.KeyBinding{Key: "k", Ctrl: true, Super: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Unix(100, 0)
	m.now = func() time.Time { return now }

	if m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("fired without modifiers")
	}
	m.handleKey(LeftControl, true, false)
	if m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("fired with only ctrl held")
	}
	m.handleKey(Super, true, false)
	if !m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("combination not detected")
	}

	now = now.Add(100 * time.Millisecond)
	if m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("repeat inside the debounce window fired")
	}
	now = now.Add(time.Second)
	if !m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("combination after the debounce window ignored")
	}

	m.handleKey(Super, false, true)
	now = now.Add(time.Second)
	if m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("fired after super was released")
	}
	m.handleKey(LeftShift, true, false)
	m.handleKey(Super, true, false)
	if m.handleKey(KeyCodes["k"], true, false) {
		t.Fatal("extra shift modifier should not match")
	}
}

func TestNewMonitorRejectsUnknownKey(t *testing.T) {
	if _, err := NewMonitor(types.KeyBinding{Key: "f13"}, nil); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestParseAndFormatKeyCombo(t *testing.T) {
	kb, err := ParseKeyCombo("Ctrl+Super+K")
	if err != nil {
		t.Fatal(err)
	}
	if !kb.Ctrl || !kb.Super || kb.Shift || kb.Alt || kb.Key != "k" {
		t.Fatalf("parsed %+v", kb)
	}
	if got := FormatKeyCombo(kb); got != "CTRL + SUPER + K" {
		t.Fatalf("formatted %q", got)
	}

	for _, bad := range []string{"", "ctrl+", "ctrl+shift", "a+b", "ctrl+f13"} {
		if _, err := ParseKeyCombo(bad); err == nil {
			t.Errorf("ParseKeyCombo(%q) accepted", bad)
		}
	}
}
