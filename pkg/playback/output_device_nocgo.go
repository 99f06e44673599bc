//go:build nocgo

package playback

import (
	"errors"
	"io"
)

// DeviceOutput is unavailable in nocgo builds.
type DeviceOutput struct{}

// NewDeviceOutput always fails in nocgo builds; NewOutput(OutputAuto) falls
// back to the mock output.
func NewDeviceOutput(int) (*DeviceOutput, error) {
	return nil, errors.New("audio device support not compiled in (nocgo build)")
}

func (d *DeviceOutput) NewPlayer(io.Reader) (Voice, error) { return nil, ErrOutputNotReady }
func (d *DeviceOutput) Suspended() bool                    { return false }
func (d *DeviceOutput) Resume() error                      { return ErrOutputNotReady }
func (d *DeviceOutput) Close() error                       { return nil }
func (d *DeviceOutput) SampleRate() int                    { return SampleRate }
func (d *DeviceOutput) ChannelCount() int                  { return Channels }
