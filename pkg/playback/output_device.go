//go:build !nocgo

package playback

import (
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// DeviceOutput plays audio on the system device through oto.
type DeviceOutput struct {
	mu         sync.Mutex
	context    *oto.Context
	sampleRate int
	suspended  bool
	closed     bool
}

// NewDeviceOutput opens the audio device. oto allows a single context per
// process, so callers must keep the returned Output for the process lifetime.
func NewDeviceOutput(sampleRate int) (*DeviceOutput, error) {
	options := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	switch runtime.GOOS {
	case "darwin":
		options.BufferSize = 100 * time.Millisecond
	case "windows":
		options.BufferSize = 80 * time.Millisecond
	default:
		options.BufferSize = 50 * time.Millisecond
	}

	log.Debug("Initializing audio device",
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	context, ready, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("audio context initialization timeout")
	}

	return &DeviceOutput{context: context, sampleRate: sampleRate}, nil
}

// NewPlayer creates an oto player reading from r.
func (d *DeviceOutput) NewPlayer(r io.Reader) (Voice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.context == nil {
		return nil, ErrOutputNotReady
	}
	return &deviceVoice{player: d.context.NewPlayer(r)}, nil
}

// Suspended reports whether Suspend was called without a matching Resume.
func (d *DeviceOutput) Suspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suspended
}

// Suspend pauses the device.
func (d *DeviceOutput) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrOutputNotReady
	}
	if err := d.context.Suspend(); err != nil {
		return err
	}
	d.suspended = true
	return nil
}

// Resume restarts the device after Suspend.
func (d *DeviceOutput) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrOutputNotReady
	}
	if err := d.context.Resume(); err != nil {
		return err
	}
	d.suspended = false
	return nil
}

// Close suspends the device. oto contexts cannot be destroyed.
func (d *DeviceOutput) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.context.Suspend()
}

func (d *DeviceOutput) SampleRate() int { return d.sampleRate }

func (d *DeviceOutput) ChannelCount() int { return Channels }

type deviceVoice struct {
	player *oto.Player
}

func (v *deviceVoice) Play() { v.player.Play() }

func (v *deviceVoice) Pause() { v.player.Pause() }

func (v *deviceVoice) IsPlaying() bool { return v.player.IsPlaying() }

func (v *deviceVoice) SetVolume(volume float64) { v.player.SetVolume(volume) }

func (v *deviceVoice) Close() error { return v.player.Close() }
