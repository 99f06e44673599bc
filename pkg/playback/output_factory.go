package playback

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// IsCI detects environments without an audio device.
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}

	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar, "value", val)
			return true
		}
	}

	if os.Getenv("PADTOUR_MOCK_AUDIO") == "true" {
		log.Debug("Mock audio requested via environment variable")
		return true
	}

	return false
}

// NewOutput creates an Output of the requested type at sampleRate.
func NewOutput(kind OutputType, sampleRate int) (Output, error) {
	switch kind {
	case OutputDevice:
		return NewDeviceOutput(sampleRate)

	case OutputMock:
		return NewMockOutput(sampleRate), nil

	case OutputAuto:
		if IsCI() {
			log.Info("Using mock audio output", "reason", "CI environment")
			return NewMockOutput(sampleRate), nil
		}
		out, err := NewDeviceOutput(sampleRate)
		if err != nil {
			log.Warn("Audio device unavailable, falling back to mock output", "error", err)
			return NewMockOutput(sampleRate), nil
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown audio output type: %v", kind)
	}
}

// Opener returns a function that creates the Output on first use.
func Opener(kind OutputType, sampleRate int) func() (Output, error) {
	return func() (Output, error) {
		return NewOutput(kind, sampleRate)
	}
}
