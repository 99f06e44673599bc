package tour

// Phase is the orchestrator state. Scrolling, Synthesizing, Playing and
// Waiting are the sub-phases of a running step.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScrolling
	PhaseSynthesizing
	PhasePlaying
	PhaseWaiting
	PhaseStopped
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScrolling:
		return "scrolling"
	case PhaseSynthesizing:
		return "synthesizing"
	case PhasePlaying:
		return "playing"
	case PhaseWaiting:
		return "waiting"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stepping reports whether the phase belongs to a running step.
func (p Phase) Stepping() bool {
	return p >= PhaseScrolling && p <= PhaseWaiting
}

var phaseTransitions = map[Phase][]Phase{
	PhaseIdle:         {PhaseScrolling},
	PhaseScrolling:    {PhaseSynthesizing, PhaseStopped},
	PhaseSynthesizing: {PhasePlaying, PhaseWaiting, PhaseStopped},
	PhasePlaying:      {PhaseWaiting, PhaseStopped},
	PhaseWaiting:      {PhaseScrolling, PhaseStopped},
	PhaseStopped:      {PhaseScrolling},
}

// RunState is a snapshot of the tour.
type RunState struct {
	Active          bool
	Phase           Phase
	StepIndex       int
	StepCount       int
	Section         string
	Label           string
	GeneratingAudio bool
	PlayingAudio    bool
	Subtitle        string
	LastError       error
}

// Progress returns the fraction of steps reached, in [0, 1].
func (s RunState) Progress() float64 {
	if !s.Active || s.StepCount == 0 {
		return 0
	}
	return float64(s.StepIndex+1) / float64(s.StepCount)
}

// AppFeatureIndex maps the app walkthrough steps onto feature indices 0..7.
// ok is false outside of the walkthrough or when the tour is not running.
func (s RunState) AppFeatureIndex() (index int, ok bool) {
	if !s.Active || s.StepIndex < FeatureFirstStep || s.StepIndex >= FeatureFirstStep+FeatureCount {
		return -1, false
	}
	return s.StepIndex - FeatureFirstStep, true
}
