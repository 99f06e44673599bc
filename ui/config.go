package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse     bool

	// Start the tour as soon as the program runs, from this step
	AutoStart bool
	StartStep int

	// Show the subtitle column without the section list
	Compact bool

	// For debugging the UI
	AltScreen      bool `env:"PADTOUR_ALT_SCREEN"     envDefault:"true"`
	GlamourEnabled bool `env:"PADTOUR_ENABLE_GLAMOUR" envDefault:"true"`
}
