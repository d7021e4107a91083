package notification

import (
	"fmt"
	"runtime"
	"time"

	"github.com/dooshek/kittbar/internal/capture"
	"github.com/dooshek/kittbar/internal/logger"
)

const appTitle = "KITT bar"

// Notifier defines the interface for system notifications
type Notifier interface {
	NotifyCaptureStarted() error
	NotifyCaptureEnded(ev capture.Event) error
	Notify(title, message string) error
}

// SilentNotifier is a no-op implementation for --no-notify
type SilentNotifier struct{}

func NewSilent() Notifier {
	return &SilentNotifier{}
}

func (s *SilentNotifier) NotifyCaptureStarted() error            { return nil }
func (s *SilentNotifier) NotifyCaptureEnded(capture.Event) error { return nil }
func (s *SilentNotifier) Notify(title, message string) error     { return nil }

type baseNotifier struct {
	platform platformNotifier
}

type platformNotifier interface {
	send(title, message string) error
}

// New creates a new platform-specific notification service
func New() Notifier {
	logger.Debug("Initializing notification system")
	var platform platformNotifier
	switch runtime.GOOS {
	case "darwin":
		logger.Debug("Using Darwin (macOS) notifier")
		platform = &darwinNotifier{}
	default:
		logger.Debug("Using Linux notifier")
		platform = &linuxNotifier{}
	}
	return &baseNotifier{platform: platform}
}

func (n *baseNotifier) NotifyCaptureStarted() error {
	logger.Debug("Sending capture started notification")
	return n.Notify(appTitle, "Listening...")
}

func (n *baseNotifier) NotifyCaptureEnded(ev capture.Event) error {
	return n.Notify(appTitle, endedMessage(ev))
}

func (n *baseNotifier) Notify(title, message string) error {
	return n.platform.send(title, message)
}

// endedMessage describes why a capture run ended
func endedMessage(ev capture.Event) string {
	d := ev.Stats.Duration.Round(time.Second)
	if ev.Err != nil {
		return fmt.Sprintf("Microphone lost after %s: %v", d, ev.Err)
	}
	return fmt.Sprintf("Stopped after %s", d)
}
