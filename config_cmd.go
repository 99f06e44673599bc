package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# log level: debug, info, warn or error
log_level: "info"
# audio output: auto, device or mock
output: "auto"
# serve Prometheus metrics on this address, e.g. "127.0.0.1:9464"
metrics_addr: ""

api:
  # key: "" # falls back to GEMINI_API_KEY, then API_KEY
  requests_per_minute: 60
  timeout: "60s"

# Guided tour
tour:
  voice: "Fenrir"
  # pause after a step finished playing
  settle_delay: "1s"
  # pause after a step failed to synthesize
  fallback_delay: "2s"
  # steps_file: "~/padworld/steps.yaml"

# Podcast briefing
podcast:
  asset: "/padworld_podcast.mp3"
  # asset_url: "https://padworld.example.com"
  # asset_dir: "~/padworld/public"
  export_path: "padworld_podcast.wav"

# Live session with Paddy
live:
  voice: "Fenrir"
  lead: "100ms"
  # capture_command: "arecord -q -t raw -f S16_LE -c 1 -r 16000"
  capture_rate: 16000
  chunk_samples: 4096

# Hero video generation
video:
  output: "padworld_hero.mp4"
  poll_interval: "5s"

# Background ambience
ambience:
  enabled: true
  muted: false
  # theme_file: "~/padworld/theme.mp3"

# Narration cache
cache:
  memory_mb: 64
  disk_mb: 512
  compression_level: 3
  ttl: "168h"

# Session journal
journal:
  enabled: true
  retention_days: 30
  max_sessions: 500

# Presenter bus (NATS)
bus:
  # url: "nats://127.0.0.1:4222"
  embedded: false
  port: 4222
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the padtour config file",
	Long:    paragraph(fmt.Sprintf("\n%s the padtour config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("padtour config\npadtour config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("padtour", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
