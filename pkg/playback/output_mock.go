package playback

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// MockOutput implements Output without touching the audio device. It is
// used in CI and in tests.
type MockOutput struct {
	mu         sync.Mutex
	sampleRate int
	ready      bool
	suspended  bool
	voices     []*MockVoice

	// ResumeErr, when set, is returned by Resume.
	ResumeErr error

	// Test helpers
	PlayersCreated int
	Resumes        int
}

// NewMockOutput creates a ready mock output.
func NewMockOutput(sampleRate int) *MockOutput {
	log.Debug("Creating mock audio output", "sample_rate", sampleRate)
	return &MockOutput{sampleRate: sampleRate, ready: true}
}

// mockReadLimit caps what a mock voice reads, so endless streams such as
// the ambience loop can be played.
const mockReadLimit = 4 << 20

// NewPlayer consumes up to 4 MiB of r and returns a voice holding the bytes.
func (m *MockOutput) NewPlayer(r io.Reader) (Voice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready {
		return nil, ErrOutputNotReady
	}

	data, err := io.ReadAll(io.LimitReader(r, mockReadLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	v := &MockVoice{data: data, volume: 1.0}
	m.voices = append(m.voices, v)
	m.PlayersCreated++
	return v, nil
}

// Suspend marks the output suspended, as a platform autoplay policy would.
func (m *MockOutput) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
}

func (m *MockOutput) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

func (m *MockOutput) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resumes++
	if m.ResumeErr != nil {
		return m.ResumeErr
	}
	m.suspended = false
	return nil
}

// Close closes every voice and marks the output unusable.
func (m *MockOutput) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, v := range m.voices {
		errs = append(errs, v.Close())
	}
	m.ready = false
	return errors.Join(errs...)
}

func (m *MockOutput) SampleRate() int { return m.sampleRate }

func (m *MockOutput) ChannelCount() int { return Channels }

// Voices returns the voices created so far.
func (m *MockOutput) Voices() []*MockVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockVoice, len(m.voices))
	copy(out, m.voices)
	return out
}

// PlayingCount returns how many voices are currently playing.
func (m *MockOutput) PlayingCount() int {
	n := 0
	for _, v := range m.Voices() {
		if v.IsPlaying() {
			n++
		}
	}
	return n
}

// MockVoice records what was played.
type MockVoice struct {
	mu      sync.Mutex
	data    []byte
	playing bool
	closed  bool
	volume  float64

	PlayCount int
}

func (v *MockVoice) Play() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.playing = true
	v.PlayCount++
}

func (v *MockVoice) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = false
}

func (v *MockVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *MockVoice) SetVolume(volume float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.volume = volume
}

// Volume returns the last volume set.
func (v *MockVoice) Volume() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *MockVoice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = false
	v.closed = true
	return nil
}

// Closed reports whether Close was called.
func (v *MockVoice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Data returns the PCM bytes handed to the voice.
func (v *MockVoice) Data() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data
}
