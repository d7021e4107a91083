package keyboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarinX/keylogger"
	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/types"
)

// Ignore repeated combos that arrive faster than this
const debounceThreshold = 500 * time.Millisecond

// ModifierState tracks the state of modifier keys (Ctrl, Shift, Alt, Super)
type ModifierState struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
}

// Toggler is what the hotkey drives, normally a capture session.
type Toggler interface {
	Toggle(ctx context.Context) error
}

// Monitor watches an evdev keyboard and toggles the session when the
// configured combination is pressed.
type Monitor struct {
	toggler       Toggler
	keyConfig     types.KeyBinding
	modifierState ModifierState
	targetKeyCode uint16

	keyboard         *keylogger.KeyLogger
	lastKeyEventTime time.Time
	now              func() time.Time
}

// NewMonitor creates a hotkey monitor for keyConfig.
func NewMonitor(keyConfig types.KeyBinding, toggler Toggler) (*Monitor, error) {
	code, ok := KeyCodes[strings.ToLower(keyConfig.Key)]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey %q", keyConfig.Key)
	}
	return &Monitor{
		toggler:       toggler,
		keyConfig:     keyConfig,
		targetKeyCode: code,
		now:           time.Now,
	}, nil
}

// Start opens the first keyboard device and processes events until ctx is
// done or the device goes away.
func (m *Monitor) Start(ctx context.Context) error {
	keyboards := keylogger.FindAllKeyboardDevices()
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found")
	}

	kbd, err := keylogger.New(keyboards[0])
	if err != nil {
		if strings.Contains(err.Error(), "permission denied") {
			fmt.Printf("Cannot access keyboard device.\n" +
				"Solution: \n" +
				"1. Add yourself to the input group: sudo usermod -aG input $USER \n" +
				"2. Log out and log back in (or restart your system) \n" +
				"3. Run the program again \n")
		}
		return fmt.Errorf("error initializing keylogger: %w", err)
	}
	m.keyboard = kbd
	logger.Debugf("Watching %s for %s", keyboards[0], FormatKeyCombo(m.keyConfig))

	go func() {
		<-ctx.Done()
		m.Stop()
	}()

	for e := range kbd.Read() {
		if e.Type != keylogger.EvKey {
			continue
		}
		if m.handleKey(uint16(e.Code), e.KeyPress(), e.KeyRelease()) {
			if err := m.toggler.Toggle(ctx); err != nil {
				logger.Error("Hotkey toggle failed", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// handleKey updates the modifier state and reports whether the event
// completes the configured combination.
func (m *Monitor) handleKey(code uint16, press, release bool) bool {
	switch {
	case press:
		switch code {
		case LeftControl, RightControl:
			m.modifierState.Ctrl = true
		case LeftShift, RightShift:
			m.modifierState.Shift = true
		case LeftAlt, RightAlt:
			m.modifierState.Alt = true
		case Super:
			m.modifierState.Super = true
		default:
			if code != m.targetKeyCode || !m.checkModifiers() {
				return false
			}
			now := m.now()
			if !m.lastKeyEventTime.IsZero() && now.Sub(m.lastKeyEventTime) <= debounceThreshold {
				logger.Debugf("Ignoring hotkey - too soon after previous (%d ms)", now.Sub(m.lastKeyEventTime).Milliseconds())
				return false
			}
			m.lastKeyEventTime = now
			logger.Debugf("Detected key combination, toggling capture")
			return true
		}
	case release:
		switch code {
		case LeftControl, RightControl:
			m.modifierState.Ctrl = false
		case LeftShift, RightShift:
			m.modifierState.Shift = false
		case LeftAlt, RightAlt:
			m.modifierState.Alt = false
		case Super:
			m.modifierState.Super = false
		}
	}
	return false
}

// checkModifiers verifies if current modifier state matches the configuration
func (m *Monitor) checkModifiers() bool {
	return m.modifierState.Ctrl == m.keyConfig.Ctrl &&
		m.modifierState.Shift == m.keyConfig.Shift &&
		m.modifierState.Alt == m.keyConfig.Alt &&
		m.modifierState.Super == m.keyConfig.Super
}

func (m *Monitor) Stop() {
	if m.keyboard != nil {
		m.keyboard.Close()
	}
}

// FormatKeyCombo formats a key combination into a human-readable string
func FormatKeyCombo(combo types.KeyCombo) string {
	var parts []string
	if combo.HasCtrl() {
		parts = append(parts, "CTRL")
	}
	if combo.HasShift() {
		parts = append(parts, "SHIFT")
	}
	if combo.HasAlt() {
		parts = append(parts, "ALT")
	}
	if combo.HasSuper() {
		parts = append(parts, "SUPER")
	}
	if key := combo.GetKey(); key != "" {
		parts = append(parts, strings.ToUpper(key))
	}
	return strings.Join(parts, " + ")
}

// ParseKeyCombo parses "ctrl+super+k" style bindings.
func ParseKeyCombo(s string) (types.KeyBinding, error) {
	var kb types.KeyBinding
	for _, part := range strings.Split(strings.ToLower(s), "+") {
		switch p := strings.TrimSpace(part); p {
		case "ctrl", "control":
			kb.Ctrl = true
		case "shift":
			kb.Shift = true
		case "alt":
			kb.Alt = true
		case "super", "meta", "win":
			kb.Super = true
		case "":
			return kb, fmt.Errorf("empty key in %q", s)
		default:
			if kb.Key != "" {
				return kb, fmt.Errorf("more than one key in %q", s)
			}
			if _, ok := KeyCodes[p]; !ok {
				return kb, fmt.Errorf("unsupported key %q", p)
			}
			kb.Key = p
		}
	}
	if kb.Key == "" {
		return kb, fmt.Errorf("no key in %q", s)
	}
	return kb, nil
}
