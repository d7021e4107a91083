package types

import "time"

// KeyCombo interface for types that can be printed as a key combination
type KeyCombo interface {
	HasCtrl() bool
	HasShift() bool
	HasAlt() bool
	HasSuper() bool
	GetKey() string
}

type KeyBinding struct {
	Key   string `yaml:"key"`   // The actual key (e.g., "a", "b", "1", etc.)
	Ctrl  bool   `yaml:"ctrl"`  // Control key modifier
	Shift bool   `yaml:"shift"` // Shift key modifier
	Alt   bool   `yaml:"alt"`   // Alt key modifier
	Super bool   `yaml:"super"` // Super (Windows/Command) key modifier
}

func (kb KeyBinding) HasCtrl() bool  { return kb.Ctrl }
func (kb KeyBinding) HasShift() bool { return kb.Shift }
func (kb KeyBinding) HasAlt() bool   { return kb.Alt }
func (kb KeyBinding) HasSuper() bool { return kb.Super }
func (kb KeyBinding) GetKey() string { return kb.Key }

// Level extraction strategies
const (
	StrategyRMS      = "rms"
	StrategySpectral = "spectral"
)

// Column layouts
const (
	LayoutAlternating = "alternating"
	LayoutMirrored    = "mirrored"
)

// CaptureConfig is fixed for the lifetime of a session.
type CaptureConfig struct {
	SampleRate    int           `yaml:"sample_rate" validate:"min=8000,max=192000"`
	BlockSize     int           `yaml:"block_size" validate:"min=64,max=65536"`
	ColumnCount   int           `yaml:"column_count" validate:"min=1,max=64"`
	MaxSegments   int           `yaml:"max_segments" validate:"min=1,max=128"`
	CycleInterval time.Duration `yaml:"cycle_interval" validate:"min=1ms,max=1s"`
	DecayTimeout  time.Duration `yaml:"decay_timeout" validate:"min=0,max=1m"`
	Device        string        `yaml:"device,omitempty"` // substring of the capture device name, empty = default
}

// BlockDuration is the wall-clock length of one sample block.
func (c CaptureConfig) BlockDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.BlockSize) * time.Second / time.Duration(c.SampleRate)
}

type LevelConfig struct {
	Strategy           string  `yaml:"strategy" validate:"oneof=rms spectral"`
	Bands              int     `yaml:"bands" validate:"oneof=1 3"`               // rms only
	SensitivityDivisor float64 `yaml:"sensitivity_divisor" validate:"gt=0"`      // rms only
	SpectralScale      float64 `yaml:"spectral_scale" validate:"gt=0"`           // spectral only
	SpectralSmoothing  float64 `yaml:"spectral_smoothing" validate:"gte=0,lt=1"` // weight of the previous magnitude
}

type DisplayConfig struct {
	FloorMin       int    `yaml:"floor_min" validate:"min=0"`
	SymmetryOffset int    `yaml:"symmetry_offset" validate:"min=0"`
	Layout         string `yaml:"layout" validate:"omitempty,oneof=alternating mirrored"`
	Centered       bool   `yaml:"centered"`
	FadeSegments   int    `yaml:"fade_segments" validate:"min=0"`
}

type ServerConfig struct {
	WebSocketAddr string `yaml:"websocket_addr,omitempty" validate:"omitempty,hostname_port"`
	DBus          bool   `yaml:"dbus"`
}

type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Levels  LevelConfig   `yaml:"levels"`
	Display DisplayConfig `yaml:"display"`
	Server  ServerConfig  `yaml:"server"`
	Hotkey  KeyBinding    `yaml:"hotkey"`
}

// GetLayout returns the configured column layout, defaulting from the strategy.
func (c *Config) GetLayout() string {
	if c.Display.Layout != "" {
		return c.Display.Layout
	}
	if c.Levels.Strategy == StrategySpectral {
		return LayoutMirrored
	}
	return LayoutAlternating
}

// BandCount is the number of logical bands the configured strategy produces.
func (c *Config) BandCount() int {
	if c.Levels.Strategy == StrategySpectral {
		return c.Capture.ColumnCount/2 + 1
	}
	return c.Levels.Bands
}
