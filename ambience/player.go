// Package ambience plays the background bed under the experience: a looping
// theme track when one is configured, otherwise a procedural drone. It uses
// its own voice on the shared output and is never preempted by the tour,
// the podcast or the live session.
package ambience

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/internal/clock"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/pkg/playback"
)

// Fade-in and level defaults for the theme track.
const (
	DefaultFadeStep     = 0.01
	DefaultFadeInterval = 100 * time.Millisecond
	DefaultThemeVolume  = 0.2
)

// ThemeLoader decodes a theme reference to mono samples at the output rate.
type ThemeLoader interface {
	Load(ctx context.Context, ref string) ([]float32, error)
}

// Config configures the player.
type Config struct {
	Theme        string // Empty selects the drone
	Muted        bool
	FadeStep     float64
	FadeInterval time.Duration
	ThemeVolume  float64
}

// DefaultConfig returns the standard fade.
func DefaultConfig() Config {
	return Config{
		FadeStep:     DefaultFadeStep,
		FadeInterval: DefaultFadeInterval,
		ThemeVolume:  DefaultThemeVolume,
	}
}

// Player owns the ambience voice.
type Player struct {
	open   func() (playback.Output, error)
	loader ThemeLoader
	clock  clock.Clock
	logger *log.Logger
	cfg    Config

	mu     sync.Mutex
	voice  playback.Voice
	theme  bool
	volume float64
	muted  bool
	fade   clock.Timer
}

// Option configures a Player.
type Option func(*Player)

// WithConfig sets the theme and fade.
func WithConfig(cfg Config) Option {
	return func(p *Player) { p.cfg = cfg }
}

// WithLoader sets the theme loader.
func WithLoader(l ThemeLoader) Option {
	return func(p *Player) { p.loader = l }
}

// WithClock sets the clock driving the fade.
func WithClock(c clock.Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// New creates a player. open returns the shared output, typically
// Scheduler.EnsureContextReady.
func New(open func() (playback.Output, error), opts ...Option) *Player {
	p := &Player{
		open:   open,
		clock:  clock.Real(),
		logger: log.Default().WithPrefix("ambience"),
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.FadeStep <= 0 {
		p.cfg.FadeStep = DefaultFadeStep
	}
	if p.cfg.FadeInterval <= 0 {
		p.cfg.FadeInterval = DefaultFadeInterval
	}
	if p.cfg.ThemeVolume <= 0 {
		p.cfg.ThemeVolume = DefaultThemeVolume
	}
	p.muted = p.cfg.Muted
	return p
}

// Start begins playback. A theme that cannot be loaded falls back to the
// drone. Start does nothing while playing.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	playing := p.voice != nil
	p.mu.Unlock()
	if playing {
		return nil
	}

	var src io.Reader
	theme := false
	if p.cfg.Theme != "" && p.loader != nil {
		samples, err := p.loader.Load(ctx, p.cfg.Theme)
		switch {
		case err != nil:
			p.logger.Warn("Theme unavailable, using drone", "theme", p.cfg.Theme, "error", err)
		case len(samples) == 0:
			p.logger.Warn("Theme is empty, using drone", "theme", p.cfg.Theme)
		default:
			src = NewLoop(audio.SamplesToBytes(samples))
			theme = true
		}
	}

	out, err := p.open()
	if err != nil {
		return err
	}
	if src == nil {
		src = NewDrone(out.SampleRate())
	}
	v, err := out.NewPlayer(src)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.voice != nil {
		p.mu.Unlock()
		_ = v.Close()
		return nil
	}
	p.voice = v
	p.theme = theme
	if theme {
		p.volume = 0
	} else {
		p.volume = 1
	}
	v.SetVolume(p.effectiveLocked())
	v.Play()
	if theme {
		p.fade = p.clock.AfterFunc(p.cfg.FadeInterval, p.fadeStep)
	}
	p.mu.Unlock()

	p.logger.Debug("Ambience started", "theme", theme, "muted", p.Muted())
	return nil
}

// fadeStep raises the theme volume one step. Ticks while muted are skipped
// without raising the level.
func (p *Player) fadeStep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.voice == nil {
		return
	}
	if !p.muted {
		p.volume += p.cfg.FadeStep
		if p.volume > p.cfg.ThemeVolume {
			p.volume = p.cfg.ThemeVolume
		}
		p.voice.SetVolume(p.volume)
	}
	if p.volume >= p.cfg.ThemeVolume-1e-9 {
		p.fade = nil
		return
	}
	p.fade = p.clock.AfterFunc(p.cfg.FadeInterval, p.fadeStep)
}

// Stop ends playback.
func (p *Player) Stop() {
	p.mu.Lock()
	v := p.voice
	p.voice = nil
	if p.fade != nil {
		p.fade.Stop()
		p.fade = nil
	}
	p.mu.Unlock()
	if v != nil {
		_ = v.Close()
		p.logger.Debug("Ambience stopped")
	}
}

// ToggleMute flips the mute state and returns it. Unmuting a theme
// restores its full level at once.
func (p *Player) ToggleMute() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = !p.muted
	if !p.muted && p.theme {
		p.volume = p.cfg.ThemeVolume
	}
	if p.voice != nil {
		p.voice.SetVolume(p.effectiveLocked())
	}
	return p.muted
}

// Muted reports the mute state.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Playing reports whether the ambience voice is open.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voice != nil
}

// Volume returns the level applied to the voice.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effectiveLocked()
}

func (p *Player) effectiveLocked() float64 {
	if p.muted {
		return 0
	}
	return p.volume
}

// Loop repeats a PCM buffer forever.
type Loop struct {
	data []byte
	pos  int
}

// ErrEmptyLoop is returned when reading a loop with no data.
var ErrEmptyLoop = errors.New("empty loop")

// NewLoop creates a loop over data.
func NewLoop(data []byte) *Loop {
	return &Loop{data: data}
}

// Read copies the next bytes of the loop, wrapping at the end.
func (l *Loop) Read(p []byte) (int, error) {
	if len(l.data) == 0 {
		return 0, ErrEmptyLoop
	}
	n := 0
	for n < len(p) {
		c := copy(p[n:], l.data[l.pos:])
		n += c
		l.pos = (l.pos + c) % len(l.data)
	}
	return n, nil
}
