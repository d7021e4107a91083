package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dooshek/kittbar/internal/capture"
	"github.com/dooshek/kittbar/internal/logger"
)

// Stats holds accumulated capture statistics
type Stats struct {
	Sessions        int     `json:"sessions"`
	TotalSeconds    float64 `json:"total_seconds"`
	Cycles          uint64  `json:"cycles"`
	Missed          uint64  `json:"missed"`
	DecayTicks      uint64  `json:"decay_ticks"`
	TransientErrors uint64  `json:"transient_errors"`
	DeviceLosses    int     `json:"device_losses"`

	LastSession *capture.RunStats `json:"last_session,omitempty"`
}

// StatsManager manages capture statistics persistence
type StatsManager struct {
	stats    Stats
	filePath string
	mu       sync.Mutex
}

// NewStatsManager creates a stats manager backed by filePath and loads
// existing data
func NewStatsManager(filePath string) *StatsManager {
	sm := &StatsManager{filePath: filePath}

	if err := sm.load(); err != nil {
		logger.Debugf("Could not load stats (will start fresh): %v", err)
	}
	return sm
}

// AddSession folds a finished capture run into the totals and persists
// immediately
func (sm *StatsManager) AddSession(run capture.RunStats, deviceLost bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats.Sessions++
	sm.stats.TotalSeconds += run.Duration.Seconds()
	sm.stats.Cycles += run.Cycles
	sm.stats.Missed += run.Missed
	sm.stats.DecayTicks += run.DecayTicks
	sm.stats.TransientErrors += run.TransientErrors
	if deviceLost {
		sm.stats.DeviceLosses++
	}
	last := run
	sm.stats.LastSession = &last

	if err := sm.save(); err != nil {
		logger.Error("Failed to save stats after adding session", err)
	}
}

// GetStats returns a copy of current statistics
func (sm *StatsManager) GetStats() Stats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := sm.stats
	if sm.stats.LastSession != nil {
		last := *sm.stats.LastSession
		out.LastSession = &last
	}
	return out
}

// GetStatsJSON returns statistics as a JSON string (for D-Bus)
func (sm *StatsManager) GetStatsJSON() (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := json.Marshal(sm.stats)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}
	return string(data), nil
}

// Reset clears all statistics and persists empty state
func (sm *StatsManager) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats = Stats{}
	if err := sm.save(); err != nil {
		return fmt.Errorf("failed to save reset stats: %w", err)
	}
	return nil
}

func (sm *StatsManager) load() error {
	data, err := os.ReadFile(sm.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debugf("Stats file not found, starting fresh: %s", sm.filePath)
			return nil
		}
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	if err := json.Unmarshal(data, &sm.stats); err != nil {
		return fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	logger.Debugf("Loaded stats from %s", sm.filePath)
	return nil
}

// save writes via a temp file and rename
func (sm *StatsManager) save() error {
	dir := filepath.Dir(sm.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	data, err := json.MarshalIndent(sm.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := sm.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp stats file: %w", err)
	}
	if err := os.Rename(tempFile, sm.filePath); err != nil {
		return fmt.Errorf("failed to rename temp stats file: %w", err)
	}

	logger.Debugf("Saved stats to %s", sm.filePath)
	return nil
}
