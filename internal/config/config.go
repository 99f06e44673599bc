// Package config holds the padtour configuration: the YAML file, PADTOUR_
// environment overrides and the API credential.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Config contains all padtour configuration options.
type Config struct {
	LogLevel    string `yaml:"log_level" env:"PADTOUR_LOG_LEVEL" envDefault:"info"`
	Output      string `yaml:"output" env:"PADTOUR_OUTPUT" envDefault:"auto"`
	MetricsAddr string `yaml:"metrics_addr" env:"PADTOUR_METRICS_ADDR"`

	API      APIConfig      `yaml:"api"`
	Tour     TourConfig     `yaml:"tour"`
	Podcast  PodcastConfig  `yaml:"podcast"`
	Live     LiveConfig     `yaml:"live"`
	Video    VideoConfig    `yaml:"video"`
	Ambience AmbienceConfig `yaml:"ambience"`
	Cache    CacheConfig    `yaml:"cache"`
	Journal  JournalConfig  `yaml:"journal"`
	Bus      BusConfig      `yaml:"bus"`
}

// APIConfig configures the generation service.
type APIConfig struct {
	Key               string        `yaml:"key" env:"PADTOUR_API_KEY"`
	BaseURL           string        `yaml:"base_url" env:"PADTOUR_API_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"PADTOUR_API_REQUESTS_PER_MINUTE" envDefault:"60"`
	Timeout           time.Duration `yaml:"timeout" env:"PADTOUR_API_TIMEOUT" envDefault:"60s"`
	TextModel         string        `yaml:"text_model" env:"PADTOUR_API_TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	SpeechModel       string        `yaml:"speech_model" env:"PADTOUR_API_SPEECH_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	VideoModel        string        `yaml:"video_model" env:"PADTOUR_API_VIDEO_MODEL" envDefault:"veo-3.1-fast-generate-preview"`
}

// TourConfig configures the guided tour.
type TourConfig struct {
	Voice         string        `yaml:"voice" env:"PADTOUR_TOUR_VOICE" envDefault:"Fenrir"`
	SettleDelay   time.Duration `yaml:"settle_delay" env:"PADTOUR_TOUR_SETTLE_DELAY" envDefault:"1s"`
	FallbackDelay time.Duration `yaml:"fallback_delay" env:"PADTOUR_TOUR_FALLBACK_DELAY" envDefault:"2s"`
	StepsFile     string        `yaml:"steps_file" env:"PADTOUR_TOUR_STEPS_FILE"`
}

// PodcastConfig configures the podcast briefing.
type PodcastConfig struct {
	Asset      string `yaml:"asset" env:"PADTOUR_PODCAST_ASSET" envDefault:"/padworld_podcast.mp3"`
	AssetURL   string `yaml:"asset_url" env:"PADTOUR_PODCAST_ASSET_URL"`
	AssetDir   string `yaml:"asset_dir" env:"PADTOUR_PODCAST_ASSET_DIR"`
	ExportPath string `yaml:"export_path" env:"PADTOUR_PODCAST_EXPORT_PATH" envDefault:"padworld_podcast.wav"`
}

// LiveConfig configures the live voice session. An empty URL dials the
// public Gemini websocket origin.
type LiveConfig struct {
	URL            string        `yaml:"url" env:"PADTOUR_LIVE_URL"`
	Model          string        `yaml:"model" env:"PADTOUR_LIVE_MODEL" envDefault:"gemini-2.5-flash-native-audio-preview-09-2025"`
	Voice          string        `yaml:"voice" env:"PADTOUR_LIVE_VOICE" envDefault:"Fenrir"`
	Lead           time.Duration `yaml:"lead" env:"PADTOUR_LIVE_LEAD" envDefault:"100ms"`
	CaptureCommand string        `yaml:"capture_command" env:"PADTOUR_LIVE_CAPTURE_COMMAND"`
	CaptureRate    int           `yaml:"capture_rate" env:"PADTOUR_LIVE_CAPTURE_RATE" envDefault:"16000"`
	ChunkSamples   int           `yaml:"chunk_samples" env:"PADTOUR_LIVE_CHUNK_SAMPLES" envDefault:"4096"`
}

// VideoConfig configures hero video generation.
type VideoConfig struct {
	Output       string        `yaml:"output" env:"PADTOUR_VIDEO_OUTPUT" envDefault:"padworld_hero.mp4"`
	PollInterval time.Duration `yaml:"poll_interval" env:"PADTOUR_VIDEO_POLL_INTERVAL" envDefault:"5s"`
	Resolution   string        `yaml:"resolution" env:"PADTOUR_VIDEO_RESOLUTION" envDefault:"1080p"`
	AspectRatio  string        `yaml:"aspect_ratio" env:"PADTOUR_VIDEO_ASPECT_RATIO" envDefault:"16:9"`
}

// AmbienceConfig configures the background layer.
type AmbienceConfig struct {
	Enabled   bool   `yaml:"enabled" env:"PADTOUR_AMBIENCE_ENABLED" envDefault:"true"`
	ThemeFile string `yaml:"theme_file" env:"PADTOUR_AMBIENCE_THEME_FILE"`
	Muted     bool   `yaml:"muted" env:"PADTOUR_AMBIENCE_MUTED" envDefault:"false"`
}

// CacheConfig configures the narration cache.
type CacheConfig struct {
	Dir              string        `yaml:"dir" env:"PADTOUR_CACHE_DIR"`
	MemoryMB         int           `yaml:"memory_mb" env:"PADTOUR_CACHE_MEMORY_MB" envDefault:"64"`
	DiskMB           int           `yaml:"disk_mb" env:"PADTOUR_CACHE_DISK_MB" envDefault:"512"`
	CompressionLevel int           `yaml:"compression_level" env:"PADTOUR_CACHE_COMPRESSION_LEVEL" envDefault:"3"`
	TTL              time.Duration `yaml:"ttl" env:"PADTOUR_CACHE_TTL" envDefault:"168h"`
}

// JournalConfig configures the session journal.
type JournalConfig struct {
	Enabled       bool   `yaml:"enabled" env:"PADTOUR_JOURNAL_ENABLED" envDefault:"true"`
	Path          string `yaml:"path" env:"PADTOUR_JOURNAL_PATH"`
	RetentionDays int    `yaml:"retention_days" env:"PADTOUR_JOURNAL_RETENTION_DAYS" envDefault:"30"`
	MaxSessions   int    `yaml:"max_sessions" env:"PADTOUR_JOURNAL_MAX_SESSIONS" envDefault:"500"`
}

// BusConfig configures the presenter bus.
type BusConfig struct {
	URL      string `yaml:"url" env:"PADTOUR_BUS_URL"`
	Embedded bool   `yaml:"embedded" env:"PADTOUR_BUS_EMBEDDED" envDefault:"false"`
	Port     int    `yaml:"port" env:"PADTOUR_BUS_PORT" envDefault:"4222"`
}

// Credentials holds the API key as provided by the environment.
type Credentials struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	APIKey       string `env:"API_KEY"`
}

// Key returns GEMINI_API_KEY, falling back to API_KEY.
func (c Credentials) Key() string {
	if c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	return c.APIKey
}

// LoadCredentials reads the credential variables.
func LoadCredentials() (Credentials, error) {
	return env.ParseAs[Credentials]()
}

// FromEnv builds a configuration purely from PADTOUR_ variables and their
// defaults.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Output:   "auto",
		API:      DefaultAPIConfig(),
		Tour:     DefaultTourConfig(),
		Podcast:  DefaultPodcastConfig(),
		Live:     DefaultLiveConfig(),
		Video:    DefaultVideoConfig(),
		Ambience: AmbienceConfig{Enabled: true},
		Cache:    DefaultCacheConfig(),
		Journal:  DefaultJournalConfig(),
		Bus:      BusConfig{Port: 4222},
	}
}

// DefaultAPIConfig returns the default API settings.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:           "https://generativelanguage.googleapis.com/",
		RequestsPerMinute: 60,
		Timeout:           60 * time.Second,
		TextModel:         "gemini-2.5-flash",
		SpeechModel:       "gemini-2.5-flash-preview-tts",
		VideoModel:        "veo-3.1-fast-generate-preview",
	}
}

// DefaultTourConfig returns the default tour settings.
func DefaultTourConfig() TourConfig {
	return TourConfig{
		Voice:         "Fenrir",
		SettleDelay:   time.Second,
		FallbackDelay: 2 * time.Second,
	}
}

// DefaultPodcastConfig returns the default podcast settings.
func DefaultPodcastConfig() PodcastConfig {
	return PodcastConfig{
		Asset:      "/padworld_podcast.mp3",
		ExportPath: "padworld_podcast.wav",
	}
}

// DefaultLiveConfig returns the default live session settings.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		Model:        "gemini-2.5-flash-native-audio-preview-09-2025",
		Voice:        "Fenrir",
		Lead:         100 * time.Millisecond,
		CaptureRate:  16000,
		ChunkSamples: 4096,
	}
}

// DefaultVideoConfig returns the default video settings.
func DefaultVideoConfig() VideoConfig {
	return VideoConfig{
		Output:       "padworld_hero.mp4",
		PollInterval: 5 * time.Second,
		Resolution:   "1080p",
		AspectRatio:  "16:9",
	}
}

// DefaultCacheConfig returns the default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MemoryMB:         64,
		DiskMB:           512,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
	}
}

// DefaultJournalConfig returns the default journal settings.
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		Enabled:       true,
		RetentionDays: 30,
		MaxSessions:   500,
	}
}

// Voices lists the prebuilt voices padtour accepts.
var Voices = []string{"Aoede", "Charon", "Fenrir", "Kore", "Leda", "Orus", "Puck", "Zephyr"}

// NormalizeVoice maps a voice name in any case to its canonical spelling.
func NormalizeVoice(v string) (string, error) {
	name := cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(v)))
	for _, known := range Voices {
		if name == known {
			return name, nil
		}
	}
	return v, fmt.Errorf("invalid voice '%s': must be one of %v", v, Voices)
}

// Validate checks the configuration and normalizes case-insensitive values.
func (c *Config) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if !contains(validLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels)
	}

	validOutputs := []string{"auto", "device", "mock"}
	c.Output = strings.ToLower(c.Output)
	if !contains(validOutputs, c.Output) {
		return fmt.Errorf("invalid audio output '%s': must be one of %v", c.Output, validOutputs)
	}

	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Tour.Validate(); err != nil {
		return err
	}
	if err := c.Live.Validate(); err != nil {
		return err
	}
	if c.Video.PollInterval < time.Second {
		return fmt.Errorf("video poll interval must be at least 1s, got %v", c.Video.PollInterval)
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if c.Journal.RetentionDays < 0 {
		return fmt.Errorf("journal retention must not be negative, got %d", c.Journal.RetentionDays)
	}
	if c.Bus.Port < 0 || c.Bus.Port > 65535 {
		return fmt.Errorf("bus port must be between 0 and 65535, got %d", c.Bus.Port)
	}
	return nil
}

// Validate checks the API settings.
func (c *APIConfig) Validate() error {
	if c.RequestsPerMinute < 0 || c.RequestsPerMinute > 6000 {
		return fmt.Errorf("requests per minute must be between 0 and 6000, got %d", c.RequestsPerMinute)
	}
	if c.TextModel == "" || c.SpeechModel == "" || c.VideoModel == "" {
		return fmt.Errorf("model names must not be empty")
	}
	return nil
}

// Validate checks the tour settings.
func (c *TourConfig) Validate() error {
	voice, err := NormalizeVoice(c.Voice)
	if err != nil {
		return err
	}
	c.Voice = voice
	if c.SettleDelay < 0 || c.SettleDelay > time.Minute {
		return fmt.Errorf("settle delay must be between 0 and 1m, got %v", c.SettleDelay)
	}
	if c.FallbackDelay < 0 || c.FallbackDelay > time.Minute {
		return fmt.Errorf("fallback delay must be between 0 and 1m, got %v", c.FallbackDelay)
	}
	return nil
}

// Validate checks the live session settings.
func (c *LiveConfig) Validate() error {
	voice, err := NormalizeVoice(c.Voice)
	if err != nil {
		return err
	}
	c.Voice = voice

	validRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	rateValid := false
	for _, r := range validRates {
		if c.CaptureRate == r {
			rateValid = true
			break
		}
	}
	if !rateValid {
		return fmt.Errorf("invalid capture rate %d: must be one of %v", c.CaptureRate, validRates)
	}
	if c.ChunkSamples < 256 || c.ChunkSamples > 65536 {
		return fmt.Errorf("chunk samples must be between 256 and 65536, got %d", c.ChunkSamples)
	}
	if c.Lead < 0 || c.Lead > 5*time.Second {
		return fmt.Errorf("live lead must be between 0 and 5s, got %v", c.Lead)
	}
	return nil
}

// Validate checks the cache settings.
func (c *CacheConfig) Validate() error {
	if c.MemoryMB < 1 || c.MemoryMB > 4096 {
		return fmt.Errorf("cache memory_mb must be between 1 and 4096, got %d", c.MemoryMB)
	}
	if c.DiskMB < 0 || c.DiskMB > 65536 {
		return fmt.Errorf("cache disk_mb must be between 0 and 65536, got %d", c.DiskMB)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("cache compression level must be between 0 and 22, got %d", c.CompressionLevel)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
