package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dooshek/kittbar/internal/fileops"
	"github.com/dooshek/kittbar/internal/keyboard"
	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/types"
	"github.com/fatih/color"
)

// ErrWizardAborted is returned when input ends before a valid config was entered.
var ErrWizardAborted = errors.New("wizard input ended")

// RunWizard asks for the handful of settings worth tuning by hand and saves
// the result through fileOps. Empty answers keep the current value.
func RunWizard(in io.Reader, out io.Writer, fileOps fileops.FileOps) (*types.Config, error) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cfg, err := Load(fileOps)
	if err != nil {
		logger.Warnf("Existing config is invalid, starting from defaults: %v", err)
		cfg = Default()
	}

	bold.Fprintln(out, "\n🚨 Welcome to the KITT bar configuration wizard!")
	fmt.Fprintln(out, "Press Enter to keep the value in brackets.")

	reader := bufio.NewReader(in)
	eof := false
	ask := func(prompt, current string) (string, error) {
		cyan.Fprintf(out, "\n%s ", prompt)
		fmt.Fprintf(out, "[%s]: ", current)
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			eof = true
		} else if err != nil {
			return "", err
		}
		if line = strings.TrimSpace(line); line == "" {
			return current, nil
		}
		return line, nil
	}
	askInt := func(prompt string, current int) (int, error) {
		s, err := ask(prompt, strconv.Itoa(current))
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", s)
		}
		return v, nil
	}

	for {
		next := *cfg
		err := func() error {
			strategy, err := ask("Level strategy (rms|spectral)?", next.Levels.Strategy)
			if err != nil {
				return err
			}
			if strategy = strings.ToLower(strategy); strategy != next.Levels.Strategy {
				next.Levels.Strategy = strategy
				next.Display.Layout = ""
			}

			if next.Levels.Strategy == types.StrategyRMS {
				if next.Levels.Bands, err = askInt("Bands (1|3)?", next.Levels.Bands); err != nil {
					return err
				}
				divisor, err := ask("Sensitivity divisor (lower is more sensitive)?",
					strconv.FormatFloat(next.Levels.SensitivityDivisor, 'f', -1, 64))
				if err != nil {
					return err
				}
				if next.Levels.SensitivityDivisor, err = strconv.ParseFloat(divisor, 64); err != nil {
					return fmt.Errorf("%q is not a number", divisor)
				}
			}

			if next.Capture.MaxSegments, err = askInt("Segments per column?", next.Capture.MaxSegments); err != nil {
				return err
			}

			current := strings.ToLower(strings.ReplaceAll(keyboard.FormatKeyCombo(next.Hotkey), " ", ""))
			hotkey, err := ask("Toggle shortcut?", current)
			if err != nil {
				return err
			}
			if next.Hotkey, err = keyboard.ParseKeyCombo(hotkey); err != nil {
				return err
			}
			return Validate(&next)
		}()
		if err == nil {
			*cfg = next
			break
		}
		if eof {
			return nil, fmt.Errorf("%w: %v", ErrWizardAborted, err)
		}
		yellow.Fprintf(out, "⚠️  %v\nOK, let's try again.\n", err)
	}

	if err := Save(fileOps, cfg); err != nil {
		logger.Error("Failed to save config", err)
		return nil, err
	}

	green.Fprintln(out, "\n✅ Configuration saved successfully!")
	fmt.Fprintf(out, "Your shortcut is: %s\n", keyboard.FormatKeyCombo(cfg.Hotkey))
	return cfg, nil
}
