package tour

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one narrated stop of the tour. Steps are immutable once loaded.
type Step struct {
	SectionID string `yaml:"id"`
	Script    string `yaml:"script"`
	Label     string `yaml:"label"`
}

// The app feature walkthrough covers steps 4 through 11.
const (
	FeatureFirstStep = 4
	FeatureCount     = 8
)

// ErrNoSteps is returned when a steps file contains no steps.
var ErrNoSteps = errors.New("no tour steps")

var defaultSteps = []Step{
	{
		SectionID: "hero",
		Script:    "Welcome to PadWorld. We are building the first decentralized sports ecosystem powered by artificial intelligence. A new digital arena for the modern athlete.",
		Label:     "Introduction",
	},
	{
		SectionID: "court",
		Script:    "This is the Smart Court. It is fully connected and immersive. With 360-degree vision and pressure-sensitive floors, we track every movement in real-time.",
		Label:     "Smart Infrastructure",
	},
	{
		SectionID: "vision",
		Script:    "Our proprietary AI Vision system digitizes the physical world instantly. We calculate speed, spin, and trajectory with zero latency to gamify the experience.",
		Label:     "Computer Vision",
	},
	{
		SectionID: "referee",
		Script:    "Say goodbye to disputes. The Auto-Referee engine operates with millimeter precision, detecting faults and line calls automatically. Fair play is guaranteed.",
		Label:     "Auto-Referee",
	},
	{
		SectionID: "chat",
		Script:    "Global Ranking. Democratizing the sport. Earn points locally, rise globally. The first truly meritocratic world tour.",
		Label:     "App: Global Ranking",
	},
	{
		SectionID: "chat",
		Script:    "FastPad Booking. Instant court reservations with split payments. Unlock court doors automatically with your phone.",
		Label:     "App: FastPad Booking",
	},
	{
		SectionID: "chat",
		Script:    "Pro Analyzer. Deep learning analysis of your technique. Compare your swing signature against top pros.",
		Label:     "App: Pro Analyzer",
	},
	{
		SectionID: "chat",
		Script:    "Paddy Chat. Text-based tactical advice from Paddy, your personal AI coach trained on your play style.",
		Label:     "App: Paddy Chat",
	},
	{
		SectionID: "chat",
		Script:    "Paddy Voice. Hands-free ecosystem assistant. Say things like, 'Hey Paddy, book a court', or, 'Analyze my last set'.",
		Label:     "App: Paddy Voice",
	},
	{
		SectionID: "chat",
		Script:    "Global Passport. Universal player identity. Verified stats, NFT trophy cabinet, and on-chain match history.",
		Label:     "App: Global Passport",
	},
	{
		SectionID: "chat",
		Script:    "PadWallet. Manage PAD tokens, pay for court time, and collect NFT trophies for tournament wins.",
		Label:     "App: PadWallet",
	},
	{
		SectionID: "chat",
		Script:    "AI Matchmaking. Geo-location based opponent finding. Filters by skill level, play style, and availability.",
		Label:     "App: AI Matchmaking",
	},
	{
		SectionID: "analytics",
		Script:    "Deep data intelligence. We turn physical effort into over 5,000 data points per match, giving you professional-level insights to improve your game.",
		Label:     "Performance Data",
	},
	{
		SectionID: "ecosystem",
		Script:    "A complete universe. From hardware to nutrition, tournaments to tokens. Everything is connected in one global platform.",
		Label:     "The Ecosystem",
	},
	{
		SectionID: "outro",
		Script:    "The revolution is here. Join us in building the future of sports. PadWorld is ready for global deployment.",
		Label:     "Conclusion",
	},
}

// DefaultSteps returns a copy of the built-in PadWorld tour.
func DefaultSteps() []Step {
	steps := make([]Step, len(defaultSteps))
	copy(steps, defaultSteps)
	return steps
}

type stepsFile struct {
	Steps []Step `yaml:"steps"`
}

// LoadSteps reads a YAML document of the form
//
//	steps:
//	  - id: hero
//	    script: Welcome.
//	    label: Introduction
//
// Every step needs an id and a script.
func LoadSteps(r io.Reader) ([]Step, error) {
	var f stepsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoSteps
		}
		return nil, fmt.Errorf("parse steps: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, ErrNoSteps
	}
	for i := range f.Steps {
		s := &f.Steps[i]
		s.SectionID = strings.TrimSpace(s.SectionID)
		s.Script = strings.TrimSpace(s.Script)
		if s.SectionID == "" {
			return nil, fmt.Errorf("step %d: missing id", i+1)
		}
		if s.Script == "" {
			return nil, fmt.Errorf("step %d (%s): missing script", i+1, s.SectionID)
		}
		if s.Label == "" {
			s.Label = s.SectionID
		}
	}
	return f.Steps, nil
}
