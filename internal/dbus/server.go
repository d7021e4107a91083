package dbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dooshek/kittbar/internal/bars"
	"github.com/dooshek/kittbar/internal/capture"
	"github.com/dooshek/kittbar/internal/logger"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

const (
	dbusServiceName = "com.dooshek.kittbar"
	dbusObjectPath  = "/com/dooshek/kittbar/Visualizer"
	dbusInterface   = "com.dooshek.kittbar.Visualizer"
)

// Controller is the session surface exposed on the bus.
type Controller interface {
	Start(ctx context.Context) error
	Stop()
	Toggle(ctx context.Context) error
	IsRunning() bool
	Snapshot() *bars.State
}

// StatsSource provides persisted statistics as JSON.
type StatsSource interface {
	GetStatsJSON() (string, error)
}

// Server implements the D-Bus service for the visualizer
type Server struct {
	conn    *dbus.Conn
	session Controller
	stats   StatsSource
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewServer creates a D-Bus server for session. stats may be nil.
func NewServer(session Controller, stats StatsSource) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		session: session,
		stats:   stats,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start connects to the session bus and exports the visualizer object
func (s *Server) Start() error {
	var err error
	s.conn, err = dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := s.conn.RequestName(dbusServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		s.conn.Close()
		return fmt.Errorf("name already taken")
	}

	// Start and Stop manage the bus connection itself
	methods := map[string]string{"StartCapture": "Start", "StopCapture": "Stop"}
	err = s.conn.ExportWithMap(s, methods, dbusObjectPath, dbusInterface)
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("failed to export object: %w", err)
	}

	err = s.conn.Export(introspect.NewIntrospectable(introspectNode()), dbusObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	logger.Infof("🔌 D-Bus service started: %s", dbusServiceName)
	return nil
}

func introspectNode() *introspect.Node {
	return &introspect.Node{
		Name: dbusObjectPath,
		Interfaces: []introspect.Interface{{
			Name: dbusInterface,
			Methods: []introspect.Method{
				{Name: "Start"},
				{Name: "Stop"},
				{Name: "Toggle"},
				{
					Name: "GetStatus",
					Args: []introspect.Arg{
						{Name: "is_running", Type: "b", Direction: "out"},
					},
				},
				{
					Name: "GetSnapshot",
					Args: []introspect.Arg{
						{Name: "segments", Type: "ai", Direction: "out"},
					},
				},
				{
					Name: "GetSnapshotJSON",
					Args: []introspect.Arg{
						{Name: "snapshot", Type: "s", Direction: "out"},
					},
				},
				{
					Name: "GetStats",
					Args: []introspect.Arg{
						{Name: "stats", Type: "s", Direction: "out"},
					},
				},
			},
			Signals: []introspect.Signal{
				{Name: "SessionStarted"},
				{
					Name: "SessionEnded",
					Args: []introspect.Arg{
						{Name: "error", Type: "s"},
					},
				},
			},
		}},
	}
}

// Stop stops the D-Bus server
func (s *Server) Stop() {
	s.cancel()
	if s.conn != nil {
		s.conn.Close()
	}
	logger.Infof("🔌 D-Bus service stopped")
}

// Wait waits for the server context to be cancelled
func (s *Server) Wait() {
	<-s.ctx.Done()
}

// StartCapture starts capture (D-Bus method Start)
func (s *Server) StartCapture() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debugf("D-Bus: Start called")
	if err := s.session.Start(s.ctx); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// StopCapture stops capture (D-Bus method Stop)
func (s *Server) StopCapture() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debugf("D-Bus: Stop called")
	s.session.Stop()
	return nil
}

// Toggle toggles capture (D-Bus method)
func (s *Server) Toggle() *dbus.Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debugf("D-Bus: Toggle called")
	if err := s.session.Toggle(s.ctx); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// GetStatus returns whether capture is running (D-Bus method)
func (s *Server) GetStatus() (bool, *dbus.Error) {
	return s.session.IsRunning(), nil
}

// GetSnapshot returns per-column segment counts (D-Bus method)
func (s *Server) GetSnapshot() ([]int32, *dbus.Error) {
	values := s.session.Snapshot().Values()
	out := make([]int32, len(values))
	for i, v := range values {
		out[i] = int32(v)
	}
	return out, nil
}

// GetSnapshotJSON returns the full snapshot with runs and opacity (D-Bus method)
func (s *Server) GetSnapshotJSON() (string, *dbus.Error) {
	data, err := json.Marshal(s.session.Snapshot())
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// GetStats returns persisted statistics as JSON (D-Bus method)
func (s *Server) GetStats() (string, *dbus.Error) {
	if s.stats == nil {
		return "{}", nil
	}
	js, err := s.stats.GetStatsJSON()
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return js, nil
}

// HandleEvent forwards session lifecycle events as signals
func (s *Server) HandleEvent(ev capture.Event) {
	switch ev.Kind {
	case capture.EventStarted:
		s.emitSignal("SessionStarted")
	case capture.EventEnded:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		s.emitSignal("SessionEnded", msg)
	}
}

// emitSignal emits a D-Bus signal
func (s *Server) emitSignal(name string, args ...interface{}) {
	if s.conn == nil {
		logger.Debugf("D-Bus: Cannot emit signal %s - no connection", name)
		return
	}

	signalName := dbusInterface + "." + name
	if err := s.conn.Emit(dbus.ObjectPath(dbusObjectPath), signalName, args...); err != nil {
		logger.Errorf("D-Bus: Failed to emit signal %s", err, name)
	} else {
		logger.Debugf("D-Bus: Emitted signal: %s", name)
	}
}
