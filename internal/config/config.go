package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/dooshek/kittbar/internal/fileops"
	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/types"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	configFilename = "kittbar.yaml"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report yaml keys rather than Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Default returns the configuration used when no file exists.
func Default() *types.Config {
	return &types.Config{
		Capture: types.CaptureConfig{
			SampleRate:    44100,
			BlockSize:     1024,
			ColumnCount:   7,
			MaxSegments:   20,
			CycleInterval: 50 * time.Millisecond,
			DecayTimeout:  500 * time.Millisecond,
		},
		Levels: types.LevelConfig{
			Strategy:           types.StrategyRMS,
			Bands:              3,
			SensitivityDivisor: 5000,
			SpectralScale:      15,
			SpectralSmoothing:  0.7,
		},
		Display: types.DisplayConfig{
			FloorMin:       2,
			SymmetryOffset: 2,
			Centered:       true,
			FadeSegments:   4,
		},
		Hotkey: types.KeyBinding{
			Key:   "k",
			Ctrl:  true,
			Super: true,
		},
	}
}

// LoadConfig reads kittbar.yaml from the default config directory. Missing files
// yield the defaults.
func LoadConfig() (*types.Config, error) {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return Load(fileOps)
}

// Load reads the config through fileOps, overlays it on Default and validates it.
func Load(fileOps fileops.FileOps) (*types.Config, error) {
	data, err := fileOps.LoadConfig(configFilename)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			logger.Debugf("No config in %s, using defaults", fileOps.GetConfigDir())
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadFile reads a config from an explicit path.
func LoadFile(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults, so a partial file only overrides
// the keys it names.
func Parse(data []byte) (*types.Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to the default config directory.
func SaveConfig(cfg *types.Config) error {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return Save(fileOps, cfg)
}

// Save validates and writes cfg through fileOps.
func Save(fileOps fileops.FileOps, cfg *types.Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := fileOps.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileOps.SaveConfig(configFilename, data); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks struct tags and the relations between sections.
func Validate(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	c := cfg.Capture
	d := cfg.Display
	if d.FloorMin > c.MaxSegments {
		return fmt.Errorf("invalid config: floor_min %d exceeds max_segments %d", d.FloorMin, c.MaxSegments)
	}
	if cfg.Levels.Strategy == types.StrategyRMS && cfg.Levels.Bands == 3 && d.FloorMin+d.SymmetryOffset > c.MaxSegments {
		return fmt.Errorf("invalid config: floor_min+symmetry_offset %d exceeds max_segments %d",
			d.FloorMin+d.SymmetryOffset, c.MaxSegments)
	}

	switch cfg.GetLayout() {
	case types.LayoutAlternating:
		active := c.ColumnCount / 2
		if active == 0 {
			return fmt.Errorf("invalid config: alternating layout needs at least 2 columns")
		}
		if bands := cfg.BandCount(); bands != 1 && bands != active {
			return fmt.Errorf("invalid config: %d bands cannot fill %d active columns", bands, active)
		}
	case types.LayoutMirrored:
		if c.ColumnCount%2 == 0 {
			return fmt.Errorf("invalid config: mirrored layout needs an odd column_count, got %d", c.ColumnCount)
		}
		if cfg.Levels.Strategy == types.StrategyRMS && cfg.Levels.Bands != 1 && cfg.Levels.Bands != c.ColumnCount/2+1 {
			return fmt.Errorf("invalid config: %d bands cannot fill a mirrored %d-column layout", cfg.Levels.Bands, c.ColumnCount)
		}
	}
	return nil
}
