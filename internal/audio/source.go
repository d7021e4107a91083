// Package audio acquires fixed-size blocks of mono 16-bit PCM for the level pipeline.
package audio

import (
	"context"
	"errors"
	"strings"

	"github.com/dooshek/kittbar/internal/types"
)

var (
	// ErrPermissionDenied means microphone access was not granted. Starting a
	// session in this state is a logged no-op.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable means the capture device could not be initialized.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrReadInterrupted is returned by ReadBlock when its context is cancelled.
	ErrReadInterrupted = errors.New("read interrupted")

	// ErrReadTransient means no block arrived in time. The caller treats it as
	// a missed cycle.
	ErrReadTransient = errors.New("no audio block available")

	// ErrDeviceFatal means the device is gone; the source is unusable.
	ErrDeviceFatal = errors.New("capture device lost")
)

// Block is one buffer of mono signed 16-bit samples.
type Block []int16

// Source delivers sample blocks from an opened capture device.
type Source interface {
	// ReadBlock blocks for at most about one block duration. It returns
	// ErrReadInterrupted promptly once ctx is done.
	ReadBlock(ctx context.Context) (Block, error)

	// Close releases the device. It is safe to call more than once; the
	// device is released on the first call only.
	Close() error
}

// Opener acquires a Source for a capture configuration.
type Opener interface {
	Open(ctx context.Context, cfg types.CaptureConfig) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, cfg types.CaptureConfig) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, cfg types.CaptureConfig) (Source, error) {
	return f(ctx, cfg)
}

// Permission reports whether microphone capture is allowed.
type Permission interface {
	Granted(ctx context.Context) bool
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) bool

func (f PermissionFunc) Granted(ctx context.Context) bool { return f(ctx) }

// AlwaysGranted is used on platforms without a capture permission model.
var AlwaysGranted Permission = PermissionFunc(func(context.Context) bool { return true })

// isAccessDenied recognises backend errors caused by missing permissions.
func isAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access denied") || strings.Contains(msg, "permission denied")
}
