package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/ambience"
	"github.com/padworld/padtour/internal/asset"
	"github.com/padworld/padtour/internal/bus"
	"github.com/padworld/padtour/internal/cache"
	"github.com/padworld/padtour/internal/capture"
	"github.com/padworld/padtour/internal/config"
	"github.com/padworld/padtour/internal/genai"
	genailive "github.com/padworld/padtour/internal/genai/live"
	"github.com/padworld/padtour/internal/journal"
	"github.com/padworld/padtour/internal/telemetry"
	"github.com/padworld/padtour/live"
	"github.com/padworld/padtour/paddy"
	"github.com/padworld/padtour/pkg/playback"
	"github.com/padworld/padtour/podcast"
	"github.com/padworld/padtour/tour"
)

// app owns the long-lived services shared by the activities.
type app struct {
	cfg    config.Config
	ctx    context.Context
	cancel context.CancelFunc

	sched  *playback.Scheduler
	group  *activity.Group
	cache  *cache.Manager
	client *genai.Client
	assets *asset.Store

	metrics     *telemetry.Provider
	instruments *telemetry.Instruments
	journal     *journal.Store
	bus         *bus.Client
	embedded    *bus.EmbeddedServer

	closers []func()
}

func newApp(parent context.Context, cfg config.Config) (*app, error) {
	if parent == nil {
		parent = context.Background()
	}
	kind, err := playback.ParseOutputType(cfg.Output)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	a := &app{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		group:  activity.NewGroup(),
	}
	a.sched = playback.NewScheduler(playback.Opener(kind, playback.SampleRate))
	a.closers = append(a.closers, func() { _ = a.sched.Close() })

	if cfg.MetricsAddr != "" {
		a.setupMetrics()
	}

	if err := a.setupCache(); err != nil {
		log.Warn("Narration cache disabled", "error", err)
	}

	a.client, err = newClient(cfg, a.cache, a.instruments)
	if err != nil {
		a.Close()
		return nil, err
	}

	assetDir, _ := homedir.Expand(cfg.Podcast.AssetDir)
	a.assets = asset.NewStore(
		asset.WithBaseURL(cfg.Podcast.AssetURL),
		asset.WithDir(assetDir),
	)

	if cfg.Journal.Enabled {
		if err := a.openJournal(); err != nil {
			log.Warn("Session journal disabled", "error", err)
		}
	}

	if err := a.connectBus(); err != nil {
		log.Warn("Presenter bus disabled", "error", err)
	}

	return a, nil
}

// newClient builds the generation client from the API section.
func newClient(cfg config.Config, c *cache.Manager, in *telemetry.Instruments) (*genai.Client, error) {
	opts := []genai.Option{
		genai.WithBaseURL(cfg.API.BaseURL),
		genai.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		genai.WithModels(genai.Models{
			Text:   cfg.API.TextModel,
			Speech: cfg.API.SpeechModel,
			Video:  cfg.API.VideoModel,
		}),
		genai.WithRequestsPerMinute(cfg.API.RequestsPerMinute),
		genai.WithInstruments(in),
		genai.WithLogger(log.Default().WithPrefix("genai")),
	}
	if c != nil {
		opts = append(opts, genai.WithCache(c))
	}
	client, err := genai.New(cfg.API.Key, opts...)
	if errors.Is(err, genai.ErrMissingAPIKey) {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY or api.key in %s", err, viperConfigPath())
	}
	return client, err //nolint:wrapcheck
}

func (a *app) setupMetrics() {
	p, err := telemetry.Setup(a.ctx, "padtour", Version)
	if err != nil {
		log.Warn("Metrics disabled", "error", err)
		return
	}
	in, err := telemetry.NewInstruments(p.Meter())
	if err != nil {
		log.Warn("Metrics disabled", "error", err)
		_ = p.Shutdown(context.Background())
		return
	}
	a.metrics, a.instruments = p, in
	a.closers = append(a.closers, func() { _ = p.Shutdown(context.Background()) })

	go func() {
		if err := p.Serve(a.ctx, a.cfg.MetricsAddr); err != nil {
			log.Error("Metrics endpoint failed", "addr", a.cfg.MetricsAddr, "error", err)
		}
	}()
	log.Info("Serving metrics", "addr", a.cfg.MetricsAddr)
}

func (a *app) setupCache() error {
	dir := a.cfg.Cache.Dir
	if dir == "" {
		base, err := gap.NewScope(gap.User, "padtour").CacheDir()
		if err != nil {
			return err //nolint:wrapcheck
		}
		dir = filepath.Join(base, "narration")
	}
	dir, _ = homedir.Expand(dir)

	m, err := cache.NewManager(cache.Config{
		MemoryCapacity:   int64(a.cfg.Cache.MemoryMB) << 20,
		DiskCapacity:     int64(a.cfg.Cache.DiskMB) << 20,
		DiskPath:         dir,
		CompressionLevel: a.cfg.Cache.CompressionLevel,
		TTL:              a.cfg.Cache.TTL,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}
	a.cache = m
	a.closers = append(a.closers, func() { _ = m.Close() })
	return nil
}

func journalPath(cfg config.Config) (string, error) {
	if cfg.Journal.Path != "" {
		return homedir.Expand(cfg.Journal.Path) //nolint:wrapcheck
	}
	return gap.NewScope(gap.User, "padtour").DataPath("journal.db") //nolint:wrapcheck
}

func openJournal(ctx context.Context, cfg config.Config) (*journal.Store, error) {
	path, err := journalPath(cfg)
	if err != nil {
		return nil, err
	}
	return journal.Open(ctx, journal.Config{ //nolint:wrapcheck
		Path:          path,
		RetentionDays: cfg.Journal.RetentionDays,
		MaxSessions:   cfg.Journal.MaxSessions,
	})
}

func (a *app) openJournal() error {
	s, err := openJournal(a.ctx, a.cfg)
	if err != nil {
		return err
	}
	a.journal = s
	a.closers = append(a.closers, func() { _ = s.Close() })
	return nil
}

func (a *app) connectBus() error {
	url := a.cfg.Bus.URL
	if url == "" && a.cfg.Bus.Embedded {
		srv, err := bus.StartEmbedded("", a.cfg.Bus.Port)
		if err != nil {
			return err //nolint:wrapcheck
		}
		a.embedded = srv
		a.closers = append(a.closers, srv.Shutdown)
		url = srv.ClientURL()
	}
	if url == "" {
		return nil
	}

	c, err := bus.Connect(a.ctx, bus.Config{URL: url, Embedded: a.embedded != nil, Port: a.cfg.Bus.Port})
	if err != nil {
		return err //nolint:wrapcheck
	}
	a.bus = c
	a.closers = append(a.closers, c.Close)
	return nil
}

// stateEvent is the bus payload for an activity state change.
type stateEvent struct {
	State   string `json:"state"`
	Detail  string `json:"detail,omitempty"`
	Step    int    `json:"step,omitempty"`
	Steps   int    `json:"steps,omitempty"`
	Section string `json:"section,omitempty"`
}

// observe returns a recorder that sends activity state changes to the
// journal, the metrics and the bus.
func (a *app) observe(name string) func(ev stateEvent, idle bool) {
	var tracker *journal.Tracker
	if a.journal != nil {
		tracker = a.journal.Track(name)
	}
	var (
		mu   sync.Mutex
		last stateEvent
	)
	return func(ev stateEvent, idle bool) {
		mu.Lock()
		defer mu.Unlock()
		if ev == last {
			return
		}
		last = ev

		if tracker != nil {
			tracker.Record(a.ctx, ev.State, ev.Detail, idle)
		}
		a.instruments.RecordTransition(a.ctx, name, ev.State)
		if a.bus != nil {
			if err := a.bus.PublishState(name, ev); err != nil {
				log.Debug("Failed to publish state", "activity", name, "error", err)
			}
		}
	}
}

func loadSteps(cfg config.Config) ([]tour.Step, error) {
	if cfg.Tour.StepsFile == "" {
		return tour.DefaultSteps(), nil
	}
	path, err := homedir.Expand(cfg.Tour.StepsFile)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open steps file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	steps, err := tour.LoadSteps(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return steps, nil
}

func tourConfig(cfg config.Config) tour.Config {
	return tour.Config{
		Voice:         cfg.Tour.Voice,
		SettleDelay:   cfg.Tour.SettleDelay,
		FallbackDelay: cfg.Tour.FallbackDelay,
	}
}

// newTour builds the orchestrator. Narration goes to presenter and, when a
// bus is connected, to remote renderers as well.
func (a *app) newTour(presenter tour.Presenter) (*tour.Orchestrator, error) {
	steps, err := loadSteps(a.cfg)
	if err != nil {
		return nil, err
	}

	presenters := tour.Presenters{presenter}
	if a.bus != nil {
		presenters = append(presenters, a.bus.Presenter())
	}

	t := tour.New(steps, a.client, presenters, a.sched,
		tour.WithConfig(tourConfig(a.cfg)),
		tour.WithGroup(a.group),
		tour.WithLogger(log.Default().WithPrefix("tour")),
	)

	record := a.observe(activity.Tour)
	t.OnStateChange(func(s tour.RunState) {
		ev := stateEvent{State: s.Phase.String(), Detail: s.Label, Section: s.Section}
		if s.Active {
			ev.Step, ev.Steps = s.StepIndex+1, s.StepCount
		}
		record(ev, !s.Active)
	})
	onReload(func(c config.Config) { t.SetConfig(tourConfig(c)) })
	a.closers = append(a.closers, t.Stop)
	return t, nil
}

func (a *app) newPodcast() *podcast.Controller {
	pc := podcast.DefaultConfig()
	pc.Asset = a.cfg.Podcast.Asset

	p := podcast.New(a.client, a.assets, a.sched,
		podcast.WithConfig(pc),
		podcast.WithGroup(a.group),
		podcast.WithLogger(log.Default().WithPrefix("podcast")),
	)

	record := a.observe(activity.Podcast)
	p.OnStateChange(func(s podcast.State) {
		ev := stateEvent{State: s.String()}
		if s == podcast.StateIdle {
			if err := p.LastError(); err != nil {
				ev.Detail = err.Error()
			}
		}
		record(ev, s == podcast.StateIdle)
	})
	a.closers = append(a.closers, p.Stop)
	return p
}

func (a *app) newLive() (*live.Controller, error) {
	rec, err := capture.NewRecorder(capture.Config{
		Command:      a.cfg.Live.CaptureCommand,
		SampleRate:   a.cfg.Live.CaptureRate,
		Channels:     1,
		ChunkSamples: a.cfg.Live.ChunkSamples,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	l := live.New(
		live.Recorder{Recorder: rec},
		live.Dialer{Config: genailive.Config{
			URL:    a.cfg.Live.URL,
			APIKey: a.cfg.API.Key,
			Model:  a.cfg.Live.Model,
		}},
		a.sched,
		live.WithConfig(live.Config{
			Voice:             a.cfg.Live.Voice,
			SystemInstruction: paddy.SystemInstruction,
			Lead:              a.cfg.Live.Lead,
		}),
		live.WithGroup(a.group),
		live.WithLogger(log.Default().WithPrefix("live")),
	)

	record := a.observe(activity.Live)
	l.OnStateChange(func(s live.Status) {
		idle := s.State == live.StateDisconnected || s.State == live.StateError
		record(stateEvent{State: s.State.String(), Detail: s.Reason}, idle)
	})
	a.closers = append(a.closers, l.Disconnect)
	return l, nil
}

func (a *app) newAmbience() *ambience.Player {
	if !a.cfg.Ambience.Enabled {
		return nil
	}
	ac := ambience.DefaultConfig()
	ac.Theme = a.cfg.Ambience.ThemeFile
	if ac.Theme != "" {
		ac.Theme, _ = homedir.Expand(ac.Theme)
	}
	ac.Muted = a.cfg.Ambience.Muted

	p := ambience.New(a.sched.EnsureContextReady,
		ambience.WithConfig(ac),
		ambience.WithLoader(a.assets),
		ambience.WithLogger(log.Default().WithPrefix("ambience")),
	)
	a.closers = append(a.closers, p.Stop)
	return p
}

// remoteTour is the part of the tour that bus commands drive.
type remoteTour interface {
	Start()
	Stop()
	Next()
	Previous()
}

type remotePodcast interface {
	Start(ctx context.Context)
}

type remoteLive interface {
	Connect(ctx context.Context) error
}

// subscribeControl lets bus clients drive the activities. Any of the
// controllers may be nil.
func (a *app) subscribeControl(t remoteTour, p remotePodcast, l remoteLive) {
	if a.bus == nil {
		return
	}
	unsub, err := a.bus.SubscribeControl(func(cmd bus.Command) {
		log.Debug("Remote command", "command", cmd)
		switch cmd {
		case bus.CommandStart:
			if t != nil {
				t.Start()
			}
		case bus.CommandStop:
			if t != nil {
				t.Stop()
			}
		case bus.CommandNext:
			if t != nil {
				t.Next()
			}
		case bus.CommandPrevious:
			if t != nil {
				t.Previous()
			}
		case bus.CommandPodcast:
			if p != nil {
				p.Start(a.ctx)
			}
		case bus.CommandLive:
			if l != nil {
				if err := l.Connect(a.ctx); err != nil {
					log.Warn("Remote live connect failed", "error", err)
				}
			}
		}
	})
	if err != nil {
		log.Warn("Remote control disabled", "error", err)
		return
	}
	a.closers = append(a.closers, func() { _ = unsub() })
}

// Close stops everything in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.cancel()
}

func viperConfigPath() string {
	if configFile != "" {
		return configFile
	}
	return "the config file"
}
