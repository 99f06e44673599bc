// Package main provides the entry point for the padtour CLI application.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/padworld/padtour/internal/config"
	"github.com/padworld/padtour/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	style      string
	width      uint
	mouse      bool
	compact    bool
	autoStart  bool
	from       string

	cfg = config.Default()

	reloadMu    sync.Mutex
	reloadHooks []func(config.Config)
	watchOnce   sync.Once

	rootCmd = &cobra.Command{
		Use:   "padtour",
		Short: "The narrated PadWorld pitch, in your terminal",
		Long: paragraph(
			fmt.Sprintf("\nThe narrated %s pitch, in your terminal. Run without a command to open the guided tour.", keyword("PadWorld")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		RunE:             execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style, _ = homedir.Expand(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	// the config editor must work even when the file no longer parses
	if cmd == configCmd || cmd == manCmd {
		return nil
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	c, err := config.LoadFromViper(viper.GetViper())
	if err != nil {
		return err //nolint:wrapcheck
	}
	cfg = c
	applyLogLevel(cfg.LogLevel, debug)
	watchConfig()

	// grab UI values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")

	if !cmd.Flags().Changed("style") {
		style = viper.GetString("style")
	}
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
	if !isTerminal && !cmd.Flags().Changed("style") {
		style = "notty"
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") { //nolint:nestif
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd())) //nolint:gosec
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

// onReload registers fn to run with the new configuration whenever the
// config file changes on disk.
func onReload(fn func(config.Config)) {
	reloadMu.Lock()
	reloadHooks = append(reloadHooks, fn)
	reloadMu.Unlock()
}

func watchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	watchOnce.Do(func() {
		viper.OnConfigChange(func(e fsnotify.Event) {
			c, err := config.LoadFromViper(viper.GetViper())
			if err != nil {
				log.Warn("Ignoring invalid configuration change", "path", e.Name, "error", err)
				return
			}
			applyLogLevel(c.LogLevel, debug)

			reloadMu.Lock()
			hooks := append([]func(config.Config){}, reloadHooks...)
			reloadMu.Unlock()
			for _, fn := range hooks {
				fn(c)
			}
			log.Info("Configuration reloaded", "path", e.Name)
		})
		viper.WatchConfig()
	})
}

func execute(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	presenter := ui.NewPresenter()
	t, err := a.newTour(presenter)
	if err != nil {
		return err
	}
	start := 0
	if from != "" {
		if start, err = findStep(t.Steps(), from); err != nil {
			return err
		}
	}

	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	// use style set in env, or the flag if the env style is unusable
	if err := validateStyle(uiCfg.GlamourStyle); err != nil || uiCfg.GlamourStyle == styles.AutoStyle {
		uiCfg.GlamourStyle = style
	}
	uiCfg.GlamourMaxWidth = width
	uiCfg.EnableMouse = mouse
	uiCfg.Compact = compact
	uiCfg.AutoStart = autoStart || from != ""
	uiCfg.StartStep = start

	app := ui.App{Ctx: a.ctx, Tour: t}
	if p := a.newPodcast(); p != nil {
		app.Podcast = p
	}
	if l, err := a.newLive(); err != nil {
		log.Warn("Live session unavailable", "error", err)
	} else {
		app.Live = l
	}
	if amb := a.newAmbience(); amb != nil {
		app.Ambience = amb
	}
	a.subscribeControl(t, app.Podcast, app.Live)

	p := ui.NewProgram(uiCfg, app)
	presenter.Attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	// wired here rather than in the literal: validateOptions refers to
	// manCmd, which refers back to rootCmd (initialization cycle)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return validateOptions(cmd)
	}
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.BoolVar(&debug, "debug", false, "log at debug level")
	flags.StringP("output", "o", "auto", "audio output: auto, device or mock")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("voice", "", "narration voice")

	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to detect)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")
	rootCmd.Flags().BoolVarP(&compact, "compact", "c", false, "hide the section list")
	rootCmd.Flags().BoolVarP(&autoStart, "autostart", "a", false, "start the tour right away")
	rootCmd.Flags().StringVarP(&from, "from", "f", "", "start the tour at the step best matching this name")

	// Config bindings
	_ = viper.BindPFlag("output", flags.Lookup("output"))
	_ = viper.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	_ = viper.BindPFlag("tour.voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(
		configCmd,
		manCmd,
		tourCmd,
		podcastCmd,
		liveCmd,
		chatCmd,
		videoCmd,
		scriptCmd,
		journalCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "padtour")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "padtour")}, dirs...)
	}

	if c := os.Getenv("PADTOUR_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("padtour")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("padtour")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "padtour.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not read default configuration", "err", err)
	}
}
