// Package playback owns the single audio output context shared by the tour,
// the podcast and the live voice session, and schedules decoded speech
// buffers on it.
package playback

import (
	"errors"
	"io"
)

// Output format of the shared context.
const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16
)

var (
	// ErrOutputNotReady is returned when a player is requested from a closed
	// or uninitialized output.
	ErrOutputNotReady = errors.New("audio output not ready")
	// ErrResumeFailed is returned when a suspended output cannot be resumed,
	// for example because the platform blocks playback.
	ErrResumeFailed = errors.New("audio output could not be resumed")
	// ErrHandleReleased is returned when scheduling on a handle that has
	// been released or preempted by another owner.
	ErrHandleReleased = errors.New("playback handle released")
)

// Output is an audio output context. Implementations mix all of their
// voices onto the device.
type Output interface {
	// NewPlayer creates a voice that plays 16-bit little-endian PCM from r.
	NewPlayer(r io.Reader) (Voice, error)

	// Suspended reports whether the platform has paused the output.
	Suspended() bool

	// Resume restarts a suspended output.
	Resume() error

	// Close releases the device.
	Close() error

	SampleRate() int
	ChannelCount() int
}

// Voice is one source playing on an Output.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// OutputType selects the Output implementation.
type OutputType int

const (
	// OutputAuto uses the device when one is available and falls back to
	// the mock output otherwise.
	OutputAuto OutputType = iota
	// OutputDevice always uses the audio device.
	OutputDevice
	// OutputMock never touches the audio device.
	OutputMock
)

// String returns the config name of the output type.
func (t OutputType) String() string {
	switch t {
	case OutputAuto:
		return "auto"
	case OutputDevice:
		return "device"
	case OutputMock:
		return "mock"
	default:
		return "unknown"
	}
}

// ParseOutputType maps a config name to an OutputType.
func ParseOutputType(s string) (OutputType, error) {
	switch s {
	case "", "auto":
		return OutputAuto, nil
	case "device":
		return OutputDevice, nil
	case "mock":
		return OutputMock, nil
	default:
		return OutputAuto, errors.New("unknown audio output " + s + ": must be auto, device or mock")
	}
}
