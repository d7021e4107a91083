package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dooshek/kittbar/internal/audio"
	"github.com/dooshek/kittbar/internal/capture"
	"github.com/dooshek/kittbar/internal/config"
	"github.com/dooshek/kittbar/internal/dbus"
	"github.com/dooshek/kittbar/internal/fileops"
	"github.com/dooshek/kittbar/internal/keyboard"
	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/notification"
	"github.com/dooshek/kittbar/internal/stats"
	"github.com/dooshek/kittbar/internal/termview"
	"github.com/dooshek/kittbar/internal/types"
	"github.com/dooshek/kittbar/internal/wsview"
	"golang.org/x/sync/errgroup"
)

func init() {
	// Set custom usage message to show -- prefix
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage of %s:\n", os.Args[0])
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(out, "  --%s", f.Name)
			name, usage := flag.UnquoteUsage(f)
			if len(name) > 0 {
				fmt.Fprintf(out, " %s", name)
			}
			fmt.Fprintf(out, "\n    \t%s", usage)
			if f.DefValue != "" && f.DefValue != "false" {
				fmt.Fprintf(out, " (default %q)", f.DefValue)
			}
			fmt.Fprintf(out, "\n")
		})
	}
}

type options struct {
	configPath  string
	writeConfig bool
	wizard      bool
	showStats   bool
	resetStats  bool
	wavPath     string
	loop        bool
	strategy    string
	noTerm      bool
	fps         int
	wsAddr      string
	dbus        bool
	hotkey      bool
	noNotify    bool
}

func main() {
	var opts options
	logLevel := flag.String("log-level", "info", "Set log level (debug|info|warn|error)")
	logFilename := flag.String("log-filename", "", "Log to file instead of stdout")
	flag.StringVar(&opts.configPath, "config", "", "Read configuration from this file instead of ~/.config/kittbar")
	flag.BoolVar(&opts.writeConfig, "write-config", false, "Write the effective configuration to ~/.config/kittbar and exit")
	flag.BoolVar(&opts.wizard, "wizard", false, "Run the configuration wizard")
	flag.BoolVar(&opts.showStats, "stats", false, "Print capture statistics as JSON and exit")
	flag.BoolVar(&opts.resetStats, "reset-stats", false, "Clear capture statistics and exit")
	flag.StringVar(&opts.wavPath, "wav", "", "Replay a WAV file instead of the microphone")
	flag.BoolVar(&opts.loop, "loop", false, "Loop the --wav file")
	flag.StringVar(&opts.strategy, "strategy", "", "Override the level strategy (rms|spectral)")
	flag.BoolVar(&opts.noTerm, "no-term", false, "Do not draw the bar in the terminal")
	flag.IntVar(&opts.fps, "fps", 30, "Terminal redraw rate")
	flag.StringVar(&opts.wsAddr, "ws-addr", "", "Serve snapshots over HTTP and WebSocket on this address (e.g. 127.0.0.1:8765)")
	flag.BoolVar(&opts.dbus, "dbus", false, "Expose the session on the D-Bus session bus")
	flag.BoolVar(&opts.hotkey, "hotkey", false, "Toggle capture with the configured shortcut (needs access to /dev/input)")
	flag.BoolVar(&opts.noNotify, "no-notify", false, "Disable desktop notifications")
	flag.Parse()

	// Set up logging level and output
	logger.SetLevel(*logLevel)
	if *logFilename != "" {
		if err := logger.SetOutputFile(*logFilename); err != nil {
			fmt.Printf("Error setting log file: %v\n", err)
			os.Exit(1)
		}
		defer logger.CloseLogFile()
	}

	if err := run(opts); err != nil {
		logger.Error("kittbar failed", err)
		logger.CloseLogFile()
		os.Exit(1)
	}
}

func run(opts options) error {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return err
	}
	statsManager := stats.NewStatsManager(fileOps.GetStatsPath())

	switch {
	case opts.wizard:
		_, err := config.RunWizard(os.Stdin, os.Stdout, fileOps)
		return err
	case opts.showStats:
		js, err := statsManager.GetStatsJSON()
		if err != nil {
			return err
		}
		fmt.Println(js)
		return nil
	case opts.resetStats:
		return statsManager.Reset()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.writeConfig {
		if err := config.Save(fileOps, cfg); err != nil {
			return err
		}
		logger.Infof("✅ Configuration written to %s", fileOps.GetConfigDir())
		return nil
	}

	if err := fileOps.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create necessary directories: %w", err)
	}

	// Check if another instance is running
	if err := fileOps.CheckPID(); err != nil {
		if errors.Is(err, fileops.ErrProcessAlreadyRunning) {
			return err
		}
		logger.Warnf("Ignoring stale PID file: %v", err)
	}
	if err := fileOps.SavePID(); err != nil {
		return fmt.Errorf("failed to save PID file: %w", err)
	}
	defer func() {
		if err := fileOps.CleanupPID(); err != nil {
			logger.Error("Failed to cleanup PID file", err)
		}
	}()

	var opener audio.Opener = audio.MalgoOpener{}
	if opts.wavPath != "" {
		opener = audio.WAVOpener{Path: opts.wavPath, Loop: opts.loop}
	}

	session, err := capture.NewSession(cfg, opener, audio.AlwaysGranted)
	if err != nil {
		return err
	}
	notifier := notification.New()
	if opts.noNotify {
		notifier = notification.NewSilent()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bus *dbus.Server
	if opts.dbus || cfg.Server.DBus {
		bus = dbus.NewServer(session, statsManager)
		if err := bus.Start(); err != nil {
			return err
		}
		defer bus.Stop()
	}

	handle := func(ev capture.Event) {
		if bus != nil {
			bus.HandleEvent(ev)
		}
		if ev.Kind != capture.EventEnded {
			return
		}
		statsManager.AddSession(ev.Stats, ev.Err != nil)
		if ev.Err != nil {
			if err := notifier.NotifyCaptureEnded(ev); err != nil {
				logger.Warn("Could not send notification")
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-session.Events():
				handle(ev)
			}
		}
	})

	if !opts.noTerm {
		view := termview.New(os.Stdout, opts.fps)
		g.Go(func() error { return view.Run(gctx, session) })
	}

	wsAddr := cfg.Server.WebSocketAddr
	if opts.wsAddr != "" {
		wsAddr = opts.wsAddr
	}
	if wsAddr != "" {
		feed := wsview.New(session)
		g.Go(func() error { return feed.ListenAndServe(gctx, wsAddr) })
	}

	if opts.hotkey {
		monitor, err := keyboard.NewMonitor(cfg.Hotkey, session)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := monitor.Start(gctx); err != nil {
				// The bar keeps running without the shortcut
				logger.Error("Hotkey monitor stopped", err)
			}
			return nil
		})
		logger.Infof("Press %s to start/stop capture", keyboard.FormatKeyCombo(cfg.Hotkey))
	}

	if err := session.Start(gctx); err != nil {
		stop()
		g.Wait()
		return err
	}
	if err := notifier.NotifyCaptureStarted(); err != nil {
		logger.Warn("Could not send notification")
	}

	err = g.Wait()
	logger.Infof("Shutting down...")
	if session.State() != capture.Stopped {
		session.Stop()
		drainEnded(session, handle)
	}
	return err
}

func loadConfig(opts options) (*types.Config, error) {
	var cfg *types.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if opts.strategy != "" && opts.strategy != cfg.Levels.Strategy {
		cfg.Levels.Strategy = opts.strategy
		// Let the layout follow the new strategy
		cfg.Display.Layout = ""
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// drainEnded delivers the final session's end event, which is emitted just
// after Stop returns.
func drainEnded(session *capture.Session, handle func(capture.Event)) {
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-session.Events():
			handle(ev)
			if ev.Kind == capture.EventEnded {
				return
			}
		case <-timeout:
			return
		}
	}
}
