package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dooshek/kittbar/internal/fileops"
	"github.com/dooshek/kittbar/internal/types"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
capture:
  max_segments: 6
  decay_timeout: 250ms
levels:
  sensitivity_divisor: 8000
display:
  floor_min: 1
  centered: false
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Capture.MaxSegments != 6 {
		t.Errorf("MaxSegments = %d, want 6", cfg.Capture.MaxSegments)
	}
	if cfg.Capture.DecayTimeout != 250*time.Millisecond {
		t.Errorf("DecayTimeout = %v, want 250ms", cfg.Capture.DecayTimeout)
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want default 44100", cfg.Capture.SampleRate)
	}
	if cfg.Levels.SensitivityDivisor != 8000 {
		t.Errorf("SensitivityDivisor = %v, want 8000", cfg.Levels.SensitivityDivisor)
	}
	if cfg.Display.Centered {
		t.Error("Centered should be overridden to false")
	}
	if cfg.GetLayout() != types.LayoutAlternating {
		t.Errorf("layout = %s, want alternating", cfg.GetLayout())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
		want   string
	}{
		{"unknown strategy", func(c *types.Config) { c.Levels.Strategy = "wavelet" }, "strategy"},
		{"bands", func(c *types.Config) { c.Levels.Bands = 2 }, "bands"},
		{"floor above max", func(c *types.Config) { c.Display.FloorMin = 30 }, "floor_min"},
		{"symmetry overflow", func(c *types.Config) {
			c.Capture.MaxSegments = 6
			c.Display.FloorMin = 5
		}, "symmetry_offset"},
		{"spectral on alternating", func(c *types.Config) {
			c.Levels.Strategy = types.StrategySpectral
			c.Display.Layout = types.LayoutAlternating
		}, "active columns"},
		{"mirrored even columns", func(c *types.Config) {
			c.Levels.Strategy = types.StrategySpectral
			c.Capture.ColumnCount = 8
		}, "odd column_count"},
		{"zero divisor", func(c *types.Config) { c.Levels.SensitivityDivisor = 0 }, "sensitivity_divisor"},
		{"bad ws addr", func(c *types.Config) { c.Server.WebSocketAddr = "nope" }, "websocket_addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSpectralDefaultsToMirrored(t *testing.T) {
	cfg := Default()
	cfg.Levels.Strategy = types.StrategySpectral
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.GetLayout() != types.LayoutMirrored {
		t.Fatalf("layout = %s, want mirrored", cfg.GetLayout())
	}
	if cfg.BandCount() != 4 {
		t.Fatalf("BandCount = %d, want 4", cfg.BandCount())
	}
}

func TestSaveAndLoad(t *testing.T) {
	fo := fileops.NewFileOps(filepath.Join(t.TempDir(), "kittbar"))

	cfg, err := Load(fo)
	if err != nil {
		t.Fatalf("Load without file: %v", err)
	}
	if cfg.Capture.BlockSize != 1024 {
		t.Fatalf("expected defaults, got block size %d", cfg.Capture.BlockSize)
	}

	cfg.Capture.MaxSegments = 12
	cfg.Levels.Bands = 1
	if err := Save(fo, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(fo)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Capture.MaxSegments != 12 || got.Levels.Bands != 1 {
		t.Fatalf("round trip lost values: %+v", got)
	}
	if got.Capture.CycleInterval != 50*time.Millisecond {
		t.Fatalf("CycleInterval = %v", got.Capture.CycleInterval)
	}
}
