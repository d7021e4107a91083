package capture

import (
	"context"
	"errors"
	"time"

	"github.com/dooshek/kittbar/internal/audio"
	"github.com/dooshek/kittbar/internal/logger"
)

// transient read errors are logged once per this many occurrences
const transientLogEvery = 100

// run is the capture loop: read, extract, smooth or decay, project, publish,
// sleep. Only a lost device or cancellation ends it.
func (s *Session) run(ctx context.Context, src audio.Source, done chan struct{}, started time.Time) {
	stats := RunStats{Started: started}

	fatal := s.cycle(ctx, src, &stats)

	if err := src.Close(); err != nil {
		logger.Warnf("Failed to close audio source: %v", err)
	}
	stats.Duration = s.now().Sub(started)
	s.finish(done)

	if fatal != nil {
		logger.Error("Capture stopped, audio device lost", fatal)
	} else {
		logger.Infof("⏹️  Capture stopped after %s (%d cycles, %d missed)",
			stats.Duration.Round(time.Millisecond), stats.Cycles, stats.Missed)
	}
	s.emit(Event{Kind: EventEnded, At: s.now(), Err: fatal, Stats: stats})
}

// cycle loops until ctx is cancelled or the source fails fatally, returning
// the fatal error if any.
func (s *Session) cycle(ctx context.Context, src audio.Source, stats *RunStats) error {
	interval := s.cfg.Capture.CycleInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		block, err := src.ReadBlock(ctx)
		now := s.now()

		switch {
		case err == nil && len(block) > 0:
			s.engine.Update(s.extractor.Extract(block), now)
			stats.Updates++
		case errors.Is(err, audio.ErrReadInterrupted), ctx.Err() != nil:
			return nil
		case errors.Is(err, audio.ErrDeviceFatal):
			return err
		default:
			if err != nil {
				stats.TransientErrors++
				if stats.TransientErrors%transientLogEvery == 1 {
					logger.Debugf("Audio read failed (%d so far): %v", stats.TransientErrors, err)
				}
			}
			stats.Missed++
			if s.engine.Miss(now) {
				stats.DecayTicks++
			}
		}

		s.mailbox.Publish(s.projector.Project(s.engine.Levels(), now))
		stats.Cycles++

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}
