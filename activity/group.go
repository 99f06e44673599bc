// Package activity arbitrates between the audio-producing activities (the
// tour, the podcast and the live voice session) and defines the error
// taxonomy they share.
package activity

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Names of the built-in activities.
const (
	Tour    = "tour"
	Podcast = "podcast"
	Live    = "live"
)

// Group enforces that at most one registered activity produces audio at a
// time. Starting one stops all the others.
type Group struct {
	mu       sync.Mutex
	stoppers map[string]func()
	active   string
	logger   *log.Logger
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{
		stoppers: make(map[string]func()),
		logger:   log.Default().WithPrefix("activity"),
	}
}

// Register adds an activity and the function that stops it. Registering the
// same name again replaces the stop function.
func (g *Group) Register(name string, stop func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stoppers[name] = stop
}

// Begin marks name as the active activity and stops every other registered
// activity. Stop functions run outside the group lock, in name order.
func (g *Group) Begin(name string) {
	g.mu.Lock()
	prev := g.active
	g.active = name
	var names []string
	for other := range g.stoppers {
		if other != name {
			names = append(names, other)
		}
	}
	sort.Strings(names)
	stops := make([]func(), 0, len(names))
	for _, n := range names {
		stops = append(stops, g.stoppers[n])
	}
	g.mu.Unlock()

	if prev != "" && prev != name {
		g.logger.Debug("Activity preempted", "previous", prev, "next", name)
	}
	for _, stop := range stops {
		if stop != nil {
			stop()
		}
	}
}

// End clears name if it is still the active activity.
func (g *Group) End(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == name {
		g.active = ""
	}
}

// Active returns the name of the active activity, or "".
func (g *Group) Active() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}
