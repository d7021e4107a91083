// Package capture runs the capture loop and owns the audio session lifecycle.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dooshek/kittbar/internal/audio"
	"github.com/dooshek/kittbar/internal/bars"
	"github.com/dooshek/kittbar/internal/level"
	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/smoothing"
	"github.com/dooshek/kittbar/internal/types"
)

// State is the lifecycle state of a Session.
type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const eventBuffer = 16

// Session owns the audio source and the capture goroutine. At most one capture
// loop runs per Session.
type Session struct {
	cfg        *types.Config
	opener     audio.Opener
	permission audio.Permission

	extractor level.Extractor
	engine    *smoothing.Engine
	projector *bars.Projector
	mailbox   *Mailbox
	events    chan Event

	now func() time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds the pipeline for cfg and publishes an initial floor
// snapshot. A nil permission means capture is always allowed.
func NewSession(cfg *types.Config, opener audio.Opener, permission audio.Permission) (*Session, error) {
	if opener == nil {
		return nil, errors.New("capture: nil opener")
	}
	if permission == nil {
		permission = audio.AlwaysGranted
	}

	extractor, err := level.New(cfg.Levels, cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to create level extractor: %w", err)
	}
	layout, err := bars.NewLayout(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create column layout: %w", err)
	}
	if layout.Bands() != extractor.Bands() {
		return nil, fmt.Errorf("layout shows %d bands but the extractor produces %d", layout.Bands(), extractor.Bands())
	}

	s := &Session{
		cfg:        cfg,
		opener:     opener,
		permission: permission,
		extractor:  extractor,
		engine: smoothing.New(extractor.Bands(), smoothing.Config{
			MaxSegments:    cfg.Capture.MaxSegments,
			FloorMin:       cfg.Display.FloorMin,
			SymmetryOffset: cfg.Display.SymmetryOffset,
			DecayTimeout:   cfg.Capture.DecayTimeout,
		}),
		projector: bars.NewProjector(layout, bars.Options{
			MaxSegments:  cfg.Capture.MaxSegments,
			FloorMin:     cfg.Display.FloorMin,
			Centered:     cfg.Display.Centered,
			FadeSegments: cfg.Display.FadeSegments,
		}),
		events: make(chan Event, eventBuffer),
		now:    time.Now,
	}
	s.mailbox = NewMailbox(s.floorSnapshot())
	return s, nil
}

func (s *Session) floorSnapshot() *bars.State {
	return s.projector.Project(s.engine.Levels(), s.now())
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether the capture loop is active.
func (s *Session) IsRunning() bool {
	return s.State() == Running
}

// Snapshot returns the latest published VisualizationState. It never
// returns nil.
func (s *Session) Snapshot() *bars.State {
	return s.mailbox.Load()
}

// Subscribe is notified whenever a new snapshot is published. Call the
// returned function to unsubscribe.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.mailbox.Subscribe()
}

// Events delivers session started/ended notifications. Events are dropped
// when nobody reads them.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) Config() *types.Config {
	return s.cfg
}

// Start opens the audio source and launches the capture loop. It does nothing
// unless the session is Stopped. Missing microphone permission is not an
// error: the display is left at the floor and Start returns nil.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Stopped {
		logger.Debugf("Capture session already %s, ignoring start", s.state)
		s.mu.Unlock()
		return nil
	}
	s.state = Starting
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	if !s.permission.Granted(ctx) {
		s.denied()
		s.finish(done)
		return nil
	}

	src, err := s.opener.Open(loopCtx, s.cfg.Capture)
	if err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			s.denied()
			s.finish(done)
			return nil
		}
		s.finish(done)
		logger.Error("Failed to open audio source", err)
		return fmt.Errorf("failed to start capture: %w", err)
	}

	s.mu.Lock()
	if s.state == Stopping {
		// Stop was called while the device was opening.
		s.mu.Unlock()
		if err := src.Close(); err != nil {
			logger.Warnf("Failed to close audio source: %v", err)
		}
		s.finish(done)
		return nil
	}
	s.state = Running
	s.mu.Unlock()

	s.extractor.Reset()
	s.engine.Reset()

	started := s.now()
	s.emit(Event{Kind: EventStarted, At: started})
	logger.Infof("🎙️  Capture started (%d Hz, %d samples/block, %s)",
		s.cfg.Capture.SampleRate, s.cfg.Capture.BlockSize, s.cfg.Levels.Strategy)

	go s.run(loopCtx, src, done, started)
	return nil
}

// Stop cancels the capture loop, interrupting a pending read, and waits until
// the source has been released. Stopping a stopped session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// Toggle stops a running session or starts a stopped one.
func (s *Session) Toggle(ctx context.Context) error {
	switch s.State() {
	case Running, Starting:
		s.Stop()
		return nil
	default:
		return s.Start(ctx)
	}
}

// finish moves the session to Stopped and releases Stop waiters.
func (s *Session) finish(done chan struct{}) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.state = Stopped
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	close(done)
}

// denied runs while the session is still Starting, so no loop owns the engine.
func (s *Session) denied() {
	logger.Warn("Microphone permission not granted, capture not started")
	s.engine.Reset()
	s.mailbox.Publish(s.floorSnapshot())
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logger.Debugf("Dropping %s event, no reader", ev.Kind)
	}
}
