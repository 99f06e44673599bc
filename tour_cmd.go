package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/tour"
	"github.com/padworld/padtour/ui"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var listSteps bool

var tourCmd = &cobra.Command{
	Use:   "tour",
	Short: "Narrate the guided tour without the TUI",
	Long: paragraph(fmt.Sprintf("\n%s the guided tour as plain text: each section heading is printed as the tour reaches it, followed by the narration.", keyword("Narrate"))),
	Example: paragraph("padtour tour\npadtour tour --from court\npadtour tour --list"),
	Args:    cobra.NoArgs,
	RunE:    runPlainTour,
}

func init() {
	tourCmd.Flags().StringVarP(&from, "from", "f", "", "start at the step best matching this name or number")
	tourCmd.Flags().BoolVarP(&listSteps, "list", "l", false, "list the tour steps and exit")
}

// stepSource exposes step labels and section IDs to the fuzzy matcher.
type stepSource []tour.Step

func (s stepSource) String(i int) string { return s[i].Label + " " + s[i].SectionID }
func (s stepSource) Len() int            { return len(s) }

// findStep resolves a step by its 1-based number, its exact section ID or
// the best fuzzy match on its label.
func findStep(steps []tour.Step, query string) (int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(query); err == nil {
		if n < 1 || n > len(steps) {
			return 0, fmt.Errorf("step %d out of range: the tour has %d steps", n, len(steps))
		}
		return n - 1, nil
	}
	for i, s := range steps {
		if strings.EqualFold(s.SectionID, query) {
			return i, nil
		}
	}
	matches := fuzzy.FindFrom(query, stepSource(steps))
	if len(matches) == 0 {
		return 0, fmt.Errorf("no step matches %q", query)
	}
	return matches[0].Index, nil
}

func printSteps(steps []tour.Step) {
	for i, s := range steps {
		fmt.Printf("%3d  %s %s\n", i+1, keyword(s.Label), subtle("("+s.SectionID+")"))
	}
}

func runPlainTour(cmd *cobra.Command, _ []string) error {
	if listSteps {
		steps, err := loadSteps(cfg)
		if err != nil {
			return err
		}
		printSteps(steps)
		return nil
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.newTour(ui.NewLinePresenter(os.Stdout))
	if err != nil {
		return err
	}
	start, err := findStep(t.Steps(), from)
	if err != nil {
		return err
	}

	var (
		once    sync.Once
		started bool
		mu      sync.Mutex
		last    tour.RunState
	)
	done := make(chan struct{})
	t.OnStateChange(func(s tour.RunState) {
		mu.Lock()
		defer mu.Unlock()
		last = s
		if s.Active {
			started = true
			return
		}
		if started {
			once.Do(func() { close(done) })
		}
	})
	a.subscribeControl(t, nil, nil)

	if amb := a.newAmbience(); amb != nil {
		if err := amb.Start(a.ctx); err != nil {
			log.Warn("Ambience unavailable", "error", err)
		}
	}

	t.StartAt(start)

	select {
	case <-done:
	case <-a.ctx.Done():
		t.Stop()
		fmt.Println()
		return errors.New("tour interrupted")
	}

	mu.Lock()
	defer mu.Unlock()
	if last.LastError != nil {
		fmt.Println(failure("Last narration error: " + last.LastError.Error()))
	}
	fmt.Println(subtle("\nEnd of tour."))
	return nil
}
