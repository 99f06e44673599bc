package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadFromViper loads the configuration from v on top of the defaults.
// Keys that are not set keep their default value. The API key falls back to
// GEMINI_API_KEY or API_KEY when the file does not provide one.
func LoadFromViper(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("output") {
		cfg.Output = v.GetString("output")
	}
	if v.IsSet("metrics_addr") {
		cfg.MetricsAddr = v.GetString("metrics_addr")
	}

	cfg.API = loadAPIConfig(v)
	cfg.Tour = loadTourConfig(v)
	cfg.Podcast = loadPodcastConfig(v)
	cfg.Live = loadLiveConfig(v)
	cfg.Video = loadVideoConfig(v)
	cfg.Cache = loadCacheConfig(v)
	cfg.Journal = loadJournalConfig(v)

	if v.IsSet("ambience.enabled") {
		cfg.Ambience.Enabled = v.GetBool("ambience.enabled")
	}
	if v.IsSet("ambience.theme_file") {
		cfg.Ambience.ThemeFile = v.GetString("ambience.theme_file")
	}
	if v.IsSet("ambience.muted") {
		cfg.Ambience.Muted = v.GetBool("ambience.muted")
	}

	if v.IsSet("bus.url") {
		cfg.Bus.URL = v.GetString("bus.url")
	}
	if v.IsSet("bus.embedded") {
		cfg.Bus.Embedded = v.GetBool("bus.embedded")
	}
	if v.IsSet("bus.port") {
		cfg.Bus.Port = v.GetInt("bus.port")
	}

	if cfg.API.Key == "" {
		creds, err := LoadCredentials()
		if err != nil {
			return cfg, fmt.Errorf("invalid credentials: %w", err)
		}
		cfg.API.Key = creds.Key()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadAPIConfig(v *viper.Viper) APIConfig {
	cfg := DefaultAPIConfig()

	if v.IsSet("api.key") {
		cfg.Key = v.GetString("api.key")
	}
	if v.IsSet("api.base_url") {
		cfg.BaseURL = v.GetString("api.base_url")
	}
	if v.IsSet("api.requests_per_minute") {
		cfg.RequestsPerMinute = v.GetInt("api.requests_per_minute")
	}
	if v.IsSet("api.timeout") {
		cfg.Timeout = v.GetDuration("api.timeout")
	}
	if v.IsSet("api.text_model") {
		cfg.TextModel = v.GetString("api.text_model")
	}
	if v.IsSet("api.speech_model") {
		cfg.SpeechModel = v.GetString("api.speech_model")
	}
	if v.IsSet("api.video_model") {
		cfg.VideoModel = v.GetString("api.video_model")
	}
	return cfg
}

func loadTourConfig(v *viper.Viper) TourConfig {
	cfg := DefaultTourConfig()

	if v.IsSet("tour.voice") {
		cfg.Voice = v.GetString("tour.voice")
	}
	if v.IsSet("tour.settle_delay") {
		cfg.SettleDelay = v.GetDuration("tour.settle_delay")
	}
	if v.IsSet("tour.fallback_delay") {
		cfg.FallbackDelay = v.GetDuration("tour.fallback_delay")
	}
	if v.IsSet("tour.steps_file") {
		cfg.StepsFile = v.GetString("tour.steps_file")
	}
	return cfg
}

func loadPodcastConfig(v *viper.Viper) PodcastConfig {
	cfg := DefaultPodcastConfig()

	if v.IsSet("podcast.asset") {
		cfg.Asset = v.GetString("podcast.asset")
	}
	if v.IsSet("podcast.asset_url") {
		cfg.AssetURL = v.GetString("podcast.asset_url")
	}
	if v.IsSet("podcast.asset_dir") {
		cfg.AssetDir = v.GetString("podcast.asset_dir")
	}
	if v.IsSet("podcast.export_path") {
		cfg.ExportPath = v.GetString("podcast.export_path")
	}
	return cfg
}

func loadLiveConfig(v *viper.Viper) LiveConfig {
	cfg := DefaultLiveConfig()

	if v.IsSet("live.url") {
		cfg.URL = v.GetString("live.url")
	}
	if v.IsSet("live.model") {
		cfg.Model = v.GetString("live.model")
	}
	if v.IsSet("live.voice") {
		cfg.Voice = v.GetString("live.voice")
	}
	if v.IsSet("live.lead") {
		cfg.Lead = v.GetDuration("live.lead")
	}
	if v.IsSet("live.capture_command") {
		cfg.CaptureCommand = v.GetString("live.capture_command")
	}
	if v.IsSet("live.capture_rate") {
		cfg.CaptureRate = v.GetInt("live.capture_rate")
	}
	if v.IsSet("live.chunk_samples") {
		cfg.ChunkSamples = v.GetInt("live.chunk_samples")
	}
	return cfg
}

func loadVideoConfig(v *viper.Viper) VideoConfig {
	cfg := DefaultVideoConfig()

	if v.IsSet("video.output") {
		cfg.Output = v.GetString("video.output")
	}
	if v.IsSet("video.poll_interval") {
		cfg.PollInterval = v.GetDuration("video.poll_interval")
	}
	if v.IsSet("video.resolution") {
		cfg.Resolution = v.GetString("video.resolution")
	}
	if v.IsSet("video.aspect_ratio") {
		cfg.AspectRatio = v.GetString("video.aspect_ratio")
	}
	return cfg
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
	cfg := DefaultCacheConfig()

	if v.IsSet("cache.dir") {
		cfg.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.memory_mb") {
		cfg.MemoryMB = v.GetInt("cache.memory_mb")
	}
	if v.IsSet("cache.disk_mb") {
		cfg.DiskMB = v.GetInt("cache.disk_mb")
	}
	if v.IsSet("cache.compression_level") {
		cfg.CompressionLevel = v.GetInt("cache.compression_level")
	}
	if v.IsSet("cache.ttl") {
		cfg.TTL = v.GetDuration("cache.ttl")
	}
	return cfg
}

func loadJournalConfig(v *viper.Viper) JournalConfig {
	cfg := DefaultJournalConfig()

	if v.IsSet("journal.enabled") {
		cfg.Enabled = v.GetBool("journal.enabled")
	}
	if v.IsSet("journal.path") {
		cfg.Path = v.GetString("journal.path")
	}
	if v.IsSet("journal.retention_days") {
		cfg.RetentionDays = v.GetInt("journal.retention_days")
	}
	if v.IsSet("journal.max_sessions") {
		cfg.MaxSessions = v.GetInt("journal.max_sessions")
	}
	return cfg
}

// SetDefaults registers the defaults with v so that flags bound to the same
// keys report the right values.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("output", d.Output)

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.requests_per_minute", d.API.RequestsPerMinute)
	v.SetDefault("api.timeout", d.API.Timeout.String())
	v.SetDefault("api.text_model", d.API.TextModel)
	v.SetDefault("api.speech_model", d.API.SpeechModel)
	v.SetDefault("api.video_model", d.API.VideoModel)

	v.SetDefault("tour.voice", d.Tour.Voice)
	v.SetDefault("tour.settle_delay", d.Tour.SettleDelay.String())
	v.SetDefault("tour.fallback_delay", d.Tour.FallbackDelay.String())

	v.SetDefault("podcast.asset", d.Podcast.Asset)
	v.SetDefault("podcast.export_path", d.Podcast.ExportPath)

	v.SetDefault("live.model", d.Live.Model)
	v.SetDefault("live.voice", d.Live.Voice)
	v.SetDefault("live.lead", d.Live.Lead.String())
	v.SetDefault("live.capture_rate", d.Live.CaptureRate)
	v.SetDefault("live.chunk_samples", d.Live.ChunkSamples)

	v.SetDefault("video.output", d.Video.Output)
	v.SetDefault("video.poll_interval", d.Video.PollInterval.String())
	v.SetDefault("video.resolution", d.Video.Resolution)
	v.SetDefault("video.aspect_ratio", d.Video.AspectRatio)

	v.SetDefault("ambience.enabled", d.Ambience.Enabled)
	v.SetDefault("ambience.muted", d.Ambience.Muted)

	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())

	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.retention_days", d.Journal.RetentionDays)
	v.SetDefault("journal.max_sessions", d.Journal.MaxSessions)

	v.SetDefault("bus.port", d.Bus.Port)
}
