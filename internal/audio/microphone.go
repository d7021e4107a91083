package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dooshek/kittbar/internal/logger"
	"github.com/dooshek/kittbar/internal/types"
	"github.com/gen2brain/malgo"
)

const (
	channels = 1

	// blocks buffered between the device callback and ReadBlock
	blockQueueLen = 4

	minReadTimeout = 50 * time.Millisecond
)

// MalgoOpener opens the microphone through miniaudio.
type MalgoOpener struct{}

// microphone is a Source backed by a malgo capture device.
type microphone struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device

	blockSize   int
	readTimeout time.Duration

	// pending is only touched from the device callback.
	pending []int16
	blocks  chan Block

	lost     chan struct{}
	lostOnce sync.Once

	closing   atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Open initializes the capture device and starts it. Access-denied failures are
// reported as ErrPermissionDenied, anything else as ErrDeviceUnavailable.
func (MalgoOpener) Open(ctx context.Context, cfg types.CaptureConfig) (Source, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, classifyInitError("initialize audio context", err)
	}

	m := &microphone{
		mctx:        mctx,
		blockSize:   cfg.BlockSize,
		readTimeout: max(2*cfg.BlockDuration(), minReadTimeout),
		pending:     make([]int16, 0, cfg.BlockSize*2),
		blocks:      make(chan Block, blockQueueLen),
		lost:        make(chan struct{}),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockSize)
	deviceConfig.Alsa.NoMMap = 1

	if cfg.Device != "" {
		id, name, err := findCaptureDevice(mctx, cfg.Device)
		if err != nil {
			m.freeContext()
			return nil, err
		}
		logger.Debugf("Using capture device %q", name)
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onData,
		Stop: m.onStop,
	})
	if err != nil {
		m.freeContext()
		return nil, classifyInitError("initialize capture device", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		m.Close()
		return nil, classifyInitError("start capture device", err)
	}

	logger.Debugf("Capture device started: %d Hz, %d-sample blocks", cfg.SampleRate, cfg.BlockSize)
	return m, nil
}

func classifyInitError(op string, err error) error {
	if isAccessDenied(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDeviceUnavailable, err)
}

func findCaptureDevice(mctx *malgo.AllocatedContext, want string) (malgo.DeviceID, string, error) {
	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, "", fmt.Errorf("list capture devices: %w: %w", ErrDeviceUnavailable, err)
	}
	want = strings.ToLower(want)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			return info.ID, info.Name(), nil
		}
	}
	return malgo.DeviceID{}, "", fmt.Errorf("no capture device matching %q: %w", want, ErrDeviceUnavailable)
}

// onData runs on the audio thread and must not block.
func (m *microphone) onData(_, input []byte, _ uint32) {
	if m.closing.Load() {
		return
	}
	for i := 0; i+1 < len(input); i += 2 {
		m.pending = append(m.pending, int16(binary.LittleEndian.Uint16(input[i:])))
	}
	for len(m.pending) >= m.blockSize {
		block := make(Block, m.blockSize)
		copy(block, m.pending)
		m.pending = append(m.pending[:0], m.pending[m.blockSize:]...)
		m.push(block)
	}
}

// push keeps the freshest blocks: when the queue is full the oldest one is dropped.
func (m *microphone) push(block Block) {
	select {
	case m.blocks <- block:
		return
	default:
	}
	select {
	case <-m.blocks:
	default:
	}
	select {
	case m.blocks <- block:
	default:
	}
	if n := m.dropped.Add(1); n%100 == 1 {
		logger.Debugf("Capture queue full, dropped %d blocks so far", n)
	}
}

// onStop fires when the device stops. Outside of Close that means the device was lost.
func (m *microphone) onStop() {
	if m.closing.Load() {
		return
	}
	m.lostOnce.Do(func() {
		logger.Warn("Capture device stopped unexpectedly")
		close(m.lost)
	})
}

func (m *microphone) ReadBlock(ctx context.Context) (Block, error) {
	timer := time.NewTimer(m.readTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrReadInterrupted, ctx.Err())
	case block := <-m.blocks:
		return block, nil
	case <-m.lost:
		return nil, ErrDeviceFatal
	case <-timer.C:
		return nil, ErrReadTransient
	}
}

func (m *microphone) Close() error {
	m.closeOnce.Do(func() {
		m.closing.Store(true)
		if m.device != nil {
			m.device.Uninit()
			m.device = nil
		}
		m.freeContext()
		logger.Debug("Capture device released")
	})
	return nil
}

func (m *microphone) freeContext() {
	if m.mctx == nil {
		return
	}
	if err := m.mctx.Uninit(); err != nil {
		logger.Debugf("Audio context uninit: %v", err)
	}
	m.mctx.Free()
	m.mctx = nil
}
