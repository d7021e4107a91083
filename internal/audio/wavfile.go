package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/types"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVOpener replays a WAV file as if it were a microphone. Blocks are taken at
// the wall-clock position of the file, so a slow reader skips audio like a
// real device would.
type WAVOpener struct {
	Path string
	Loop bool

	// now is overridden in tests
	now func() time.Time
}

type wavFile struct {
	samples   []int16
	rate      int
	blockSize int
	loop      bool
	now       func() time.Time

	mu      sync.Mutex
	started time.Time
	pos     int // absolute sample index of the next block start
	closed  bool
}

func (o WAVOpener) Open(ctx context.Context, cfg types.CaptureConfig) (Source, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", o.Path, ErrDeviceUnavailable, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file: %w", o.Path, ErrDeviceUnavailable)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", o.Path, ErrDeviceUnavailable, err)
	}

	samples := toMono(buf, int(dec.BitDepth))
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s contains no samples: %w", o.Path, ErrDeviceUnavailable)
	}

	rate := int(dec.SampleRate)
	if rate <= 0 {
		rate = cfg.SampleRate
	}
	if rate != cfg.SampleRate {
		logger.Warnf("WAV sample rate %d Hz differs from configured %d Hz, replaying at file rate", rate, cfg.SampleRate)
	}

	now := o.now
	if now == nil {
		now = time.Now
	}

	logger.Infof("🎞️  Replaying %s (%.1fs, loop=%v)", o.Path, float64(len(samples))/float64(rate), o.Loop)
	return &wavFile{
		samples:   samples,
		rate:      rate,
		blockSize: cfg.BlockSize,
		loop:      o.Loop,
		now:       now,
	}, nil
}

// toMono averages interleaved channels and rescales to 16 bits.
func toMono(buf *goaudio.IntBuffer, bitDepth int) []int16 {
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil
	}
	ch := buf.Format.NumChannels
	if ch <= 0 {
		ch = 1
	}
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}

	out := make([]int16, len(buf.Data)/ch)
	for i := range out {
		sum := 0
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		out[i] = to16(sum/ch, bitDepth)
	}
	return out
}

func to16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		v = (v - 128) << 8 // 8-bit WAV is unsigned
	case bitDepth > 16:
		v >>= bitDepth - 16
	}
	if v > math.MaxInt16 {
		v = math.MaxInt16
	} else if v < math.MinInt16 {
		v = math.MinInt16
	}
	return int16(v)
}

func (w *wavFile) blockDuration() time.Duration {
	return time.Duration(w.blockSize) * time.Second / time.Duration(w.rate)
}

func (w *wavFile) ReadBlock(ctx context.Context) (Block, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, fmt.Errorf("wav source closed: %w", ErrDeviceFatal)
	}
	now := w.now()
	if w.started.IsZero() {
		w.started = now
	}

	// Jump forward to the block that is "live" right now.
	elapsed := int(now.Sub(w.started).Seconds() * float64(w.rate))
	if live := elapsed - w.blockSize; live > w.pos {
		w.pos = live
	}
	ready := w.started.Add(time.Duration(w.pos+w.blockSize) * time.Second / time.Duration(w.rate))
	start := w.pos
	w.pos += w.blockSize
	w.mu.Unlock()

	if !w.loop && start >= len(w.samples) {
		return nil, fmt.Errorf("end of %d-sample recording: %w: %w", len(w.samples), ErrDeviceFatal, io.EOF)
	}

	if wait := ready.Sub(now); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrReadInterrupted, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInterrupted, err)
	}

	return w.slice(start), nil
}

// slice copies blockSize samples starting at start, wrapping when looping and
// zero-padding past the end otherwise.
func (w *wavFile) slice(start int) Block {
	block := make(Block, w.blockSize)
	n := len(w.samples)
	for i := range block {
		idx := start + i
		if w.loop {
			idx %= n
		} else if idx >= n {
			break
		}
		block[i] = w.samples[idx]
	}
	return block
}

func (w *wavFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
