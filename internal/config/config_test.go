package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestDefaultConfig tests that the default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if cfg.Tour.SettleDelay != time.Second {
		t.Errorf("SettleDelay = %v, want 1s", cfg.Tour.SettleDelay)
	}
	if cfg.Tour.FallbackDelay != 2*time.Second {
		t.Errorf("FallbackDelay = %v, want 2s", cfg.Tour.FallbackDelay)
	}
	if cfg.Live.Lead != 100*time.Millisecond {
		t.Errorf("Lead = %v, want 100ms", cfg.Live.Lead)
	}
	if cfg.Video.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.Video.PollInterval)
	}
	if cfg.Podcast.ExportPath != "padworld_podcast.wav" {
		t.Errorf("ExportPath = %q, want padworld_podcast.wav", cfg.Podcast.ExportPath)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name:    "case insensitive log level",
			modify:  func(c *Config) { c.LogLevel = "DEBUG" },
			wantErr: false,
		},
		{
			name:    "invalid output",
			modify:  func(c *Config) { c.Output = "speaker" },
			wantErr: true,
			errMsg:  "invalid audio output",
		},
		{
			name:    "unknown voice",
			modify:  func(c *Config) { c.Tour.Voice = "Robot" },
			wantErr: true,
			errMsg:  "invalid voice",
		},
		{
			name:    "negative settle delay",
			modify:  func(c *Config) { c.Tour.SettleDelay = -time.Second },
			wantErr: true,
			errMsg:  "settle delay",
		},
		{
			name:    "invalid capture rate",
			modify:  func(c *Config) { c.Live.CaptureRate = 12345 },
			wantErr: true,
			errMsg:  "invalid capture rate",
		},
		{
			name:    "chunk too small",
			modify:  func(c *Config) { c.Live.ChunkSamples = 10 },
			wantErr: true,
			errMsg:  "chunk samples",
		},
		{
			name:    "poll interval too short",
			modify:  func(c *Config) { c.Video.PollInterval = 10 * time.Millisecond },
			wantErr: true,
			errMsg:  "poll interval",
		},
		{
			name:    "compression level too high",
			modify:  func(c *Config) { c.Cache.CompressionLevel = 30 },
			wantErr: true,
			errMsg:  "compression level",
		},
		{
			name:    "empty model",
			modify:  func(c *Config) { c.API.SpeechModel = "" },
			wantErr: true,
			errMsg:  "model names",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing '%s', got '%s'", tt.errMsg, err.Error())
			}
		})
	}
}

func TestNormalizeVoice(t *testing.T) {
	for in, want := range map[string]string{
		"fenrir":   "Fenrir",
		"KORE":     "Kore",
		" zephyr ": "Zephyr",
	} {
		got, err := NormalizeVoice(in)
		if err != nil {
			t.Errorf("NormalizeVoice(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeVoice(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadFromViper(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	v := viper.New()
	v.Set("log_level", "debug")
	v.Set("api.key", "file-key")
	v.Set("tour.voice", "kore")
	v.Set("tour.settle_delay", "250ms")
	v.Set("tour.fallback_delay", "3s")
	v.Set("live.chunk_samples", 2048)
	v.Set("podcast.asset_dir", "/srv/assets")
	v.Set("journal.enabled", false)
	v.Set("bus.embedded", true)

	cfg, err := LoadFromViper(v)
	if err != nil {
		t.Fatalf("LoadFromViper() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.API.Key != "file-key" {
		t.Errorf("API.Key = %v, want file-key", cfg.API.Key)
	}
	if cfg.Tour.Voice != "Kore" {
		t.Errorf("Tour.Voice = %v, want Kore", cfg.Tour.Voice)
	}
	if cfg.Tour.SettleDelay != 250*time.Millisecond {
		t.Errorf("Tour.SettleDelay = %v, want 250ms", cfg.Tour.SettleDelay)
	}
	if cfg.Tour.FallbackDelay != 3*time.Second {
		t.Errorf("Tour.FallbackDelay = %v, want 3s", cfg.Tour.FallbackDelay)
	}
	if cfg.Live.ChunkSamples != 2048 {
		t.Errorf("Live.ChunkSamples = %v, want 2048", cfg.Live.ChunkSamples)
	}
	if cfg.Podcast.AssetDir != "/srv/assets" {
		t.Errorf("Podcast.AssetDir = %v, want /srv/assets", cfg.Podcast.AssetDir)
	}
	if cfg.Journal.Enabled {
		t.Error("Journal should be disabled")
	}
	if !cfg.Bus.Embedded {
		t.Error("Bus should be embedded")
	}
	if cfg.Live.Voice != "Fenrir" {
		t.Errorf("Live.Voice = %v, want Fenrir", cfg.Live.Voice)
	}
}

func TestLoadFromViperCredentialFallback(t *testing.T) {
	tests := []struct {
		name   string
		gemini string
		apiKey string
		want   string
	}{
		{name: "gemini key", gemini: "g", apiKey: "a", want: "g"},
		{name: "api key fallback", gemini: "", apiKey: "a", want: "a"},
		{name: "none", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", tt.gemini)
			t.Setenv("API_KEY", tt.apiKey)

			cfg, err := LoadFromViper(viper.New())
			if err != nil {
				t.Fatalf("LoadFromViper() error = %v", err)
			}
			if cfg.API.Key != tt.want {
				t.Errorf("API.Key = %q, want %q", cfg.API.Key, tt.want)
			}
		})
	}
}

func TestLoadFromViperInvalid(t *testing.T) {
	v := viper.New()
	v.Set("tour.voice", "nobody")

	if _, err := LoadFromViper(v); err == nil {
		t.Error("Expected error for unknown voice")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PADTOUR_TOUR_SETTLE_DELAY", "500ms")
	t.Setenv("PADTOUR_LIVE_VOICE", "puck")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Tour.SettleDelay != 500*time.Millisecond {
		t.Errorf("Tour.SettleDelay = %v, want 500ms", cfg.Tour.SettleDelay)
	}
	if cfg.Tour.FallbackDelay != 2*time.Second {
		t.Errorf("Tour.FallbackDelay = %v, want 2s", cfg.Tour.FallbackDelay)
	}
	if cfg.Live.Voice != "Puck" {
		t.Errorf("Live.Voice = %v, want Puck", cfg.Live.Voice)
	}
	if cfg.Live.ChunkSamples != 4096 {
		t.Errorf("Live.ChunkSamples = %v, want 4096", cfg.Live.ChunkSamples)
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	if v.GetDuration("tour.settle_delay") != time.Second {
		t.Errorf("tour.settle_delay = %v, want 1s", v.GetDuration("tour.settle_delay"))
	}
	if v.GetString("live.voice") != "Fenrir" {
		t.Errorf("live.voice = %v, want Fenrir", v.GetString("live.voice"))
	}

	cfg, err := LoadFromViper(v)
	if err != nil {
		t.Fatalf("LoadFromViper() error = %v", err)
	}
	if cfg.Cache.TTL != 7*24*time.Hour {
		t.Errorf("Cache.TTL = %v, want 168h", cfg.Cache.TTL)
	}
}
